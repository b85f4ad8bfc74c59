package search

// State is a step of a single run
type State int

const (
	StateIdle State = iota
	StateSessionStarting
	StateSessionActive
	StateSearching
	StateWaitingForResults
	StateClosing
	StateClosed
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateSessionStarting:   "session_starting",
	StateSessionActive:     "session_active",
	StateSearching:         "searching",
	StateWaitingForResults: "waiting_for_results",
	StateClosing:           "closing",
	StateClosed:            "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// canTransition reports whether a run may move from one state to another
func canTransition(from, to State) bool {
	switch to {
	case StateSessionStarting:
		return from == StateIdle
	case StateSessionActive:
		return from == StateSessionStarting
	case StateSearching:
		return from == StateSessionActive || from == StateSearching || from == StateWaitingForResults
	case StateWaitingForResults:
		return from == StateSearching
	case StateClosing:
		return from != StateIdle && from != StateClosed && from != StateClosing
	case StateClosed:
		return from == StateClosing || from == StateSessionStarting
	}
	return false
}
