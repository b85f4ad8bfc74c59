// Package search drives the browser through a list of search queries: load
// the list, start a session, submit each query and wait for its results.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/humanize"
)

var (
	// ErrSessionStart is the only fatal failure: no browser, no run
	ErrSessionStart = errors.New("could not start browser session")
	// ErrUnexpected wraps a panic recovered during the run
	ErrUnexpected = errors.New("unexpected error during run")
)

// SessionAction is a one-time step performed on a fresh session, such as
// dismissing a consent overlay. Its errors are logged and never stop the run.
type SessionAction interface {
	Name() string
	Apply(ctx context.Context, sess driver.Session) error
}

// Options are the per-run parameters
type Options struct {
	QueriesFile          string
	MinDelaySeconds      int
	MaxDelaySeconds      int
	ActionTimeoutSeconds int
}

// Status is what happened to a single query
type Status string

const (
	StatusLoaded            Status = "loaded"
	StatusInputNotFound     Status = "input_not_found"
	StatusInteractionFailed Status = "interaction_failed"
	StatusResultsTimeout    Status = "results_timeout"
)

// QueryResult records the fate of one query
type QueryResult struct {
	Index  int
	Query  string
	Status Status
	Err    error
}

// Submitted reports whether the query reached the search engine
func (r QueryResult) Submitted() bool {
	return r.Status == StatusLoaded || r.Status == StatusResultsTimeout
}

// Outcome is the in-memory account of one run
type Outcome struct {
	RunID   string
	Queries []string
	// LoadErr is the diagnostic from loading the query list, if any
	LoadErr error
	Results []QueryResult
	Delays  []time.Duration

	SessionAcquired bool
	SessionReleased bool
	States          []State
}

// State returns the current state of the run
func (o *Outcome) State() State {
	if len(o.States) == 0 {
		return StateIdle
	}
	return o.States[len(o.States)-1]
}

// Count returns how many queries ended with status
func (o *Outcome) Count(status Status) int {
	n := 0
	for _, r := range o.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Submitted returns how many queries were submitted
func (o *Outcome) Submitted() int {
	n := 0
	for _, r := range o.Results {
		if r.Submitted() {
			n++
		}
	}
	return n
}

func (o *Outcome) transition(logger *zap.Logger, to State) {
	from := o.State()
	if !canTransition(from, to) {
		logger.Warn("Unexpected state change", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	o.States = append(o.States, to)
	logger.Debug("State change", zap.Stringer("from", from), zap.Stringer("to", to))
}

// Runner owns one browser session for the length of a run
type Runner struct {
	Launcher driver.Launcher

	HomeURL string
	Input   driver.Locator
	Results driver.Locator

	// Maximize the browser window once the session starts
	Maximize bool

	// BeforeNavigate actions run on the blank session, AfterNavigate ones on the home page
	BeforeNavigate []SessionAction
	AfterNavigate  []SessionAction

	// Typing enables per-keystroke typing; nil sends each query in one go
	Typing *humanize.TypingConfig

	Logger *zap.Logger
	// Sleep and Rand default to real sleeping and a clock seeded source
	Sleep humanize.SleepFunc
	Rand  *rand.Rand
}

// Run executes the whole workflow. The returned error is non-nil only when the
// session could not be started, the context was cancelled, or the run panicked;
// per-query failures are recorded on the outcome instead.
func (r *Runner) Run(ctx context.Context, opts Options) (out *Outcome, err error) {
	out = &Outcome{RunID: uuid.NewString()}
	logger := r.logger().With(zap.String("run_id", out.RunID))

	queries, loadErr := LoadQueries(opts.QueriesFile)
	if loadErr != nil {
		logger.Warn("❌ Could not load queries, continuing with an empty list", zap.Error(loadErr))
		out.LoadErr = loadErr
	}
	out.Queries = queries
	logger.Info("Loaded queries", zap.Int("count", len(queries)), zap.Strings("queries", queries))

	out.transition(logger, StateSessionStarting)
	logger.Info("Attempting to start browser session...")

	sess, startErr := r.Launcher.Start(ctx)
	if startErr != nil {
		logger.Error("Could not start browser session", zap.Error(startErr))
		out.transition(logger, StateClosed)
		return out, fmt.Errorf("%w: %w", ErrSessionStart, startErr)
	}
	out.SessionAcquired = true
	logger.Info("Browser session started successfully.")

	defer func() {
		if p := recover(); p != nil {
			logger.Error("An unexpected error occurred", zap.Any("panic", p))
			err = fmt.Errorf("%w: %v", ErrUnexpected, p)
		}
		r.release(logger, sess, out)
	}()

	out.transition(logger, StateSessionActive)
	return out, r.drive(ctx, logger, sess, opts, out)
}

func (r *Runner) drive(ctx context.Context, logger *zap.Logger, sess driver.Session, opts Options, out *Outcome) error {
	timeout := time.Duration(opts.ActionTimeoutSeconds) * time.Second
	pacer := humanize.NewPacer(opts.MinDelaySeconds, opts.MaxDelaySeconds, r.Rand, r.Sleep)

	if r.Maximize {
		if err := sess.Maximize(ctx); err != nil {
			logger.Warn("Could not maximize browser window", zap.Error(err))
		}
	}

	r.runActions(ctx, logger, sess, r.BeforeNavigate)

	logger.Info("Navigating to home page", zap.String("url", r.HomeURL))
	if err := sess.Navigate(ctx, r.HomeURL); err != nil {
		logger.Warn("Navigation failed, queries may be skipped", zap.Error(err))
	}

	r.runActions(ctx, logger, sess, r.AfterNavigate)

	total := len(out.Queries)
	for i, query := range out.Queries {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled", zap.Int("remaining", total-i))
			return err
		}

		out.Results = append(out.Results, r.search(ctx, logger, sess, pacer, timeout, i, query, out))

		if i < total-1 {
			delay := pacer.Next()
			out.Delays = append(out.Delays, delay)
			logger.Info(fmt.Sprintf("⏳ Waiting for %d seconds before next search...", int(delay/time.Second)))
			if err := pacer.Wait(ctx, delay); err != nil {
				logger.Warn("Run cancelled during delay", zap.Int("remaining", total-i-1))
				return err
			}
		}
	}

	logger.Info("All keywords have been searched.",
		zap.Int("loaded", out.Count(StatusLoaded)),
		zap.Int("submitted", out.Submitted()),
		zap.Int("total", total))
	return nil
}

// search performs the locate → clear → type → submit → wait sequence for one query
func (r *Runner) search(ctx context.Context, logger *zap.Logger, sess driver.Session, pacer *humanize.Pacer,
	timeout time.Duration, i int, query string, out *Outcome) QueryResult {

	res := QueryResult{Index: i, Query: query}
	total := len(out.Queries)
	qlog := logger.With(zap.Int("index", i+1), zap.String("query", query))

	fail := func(status Status, msg string, err error) QueryResult {
		res.Status = status
		res.Err = err
		qlog.Warn(msg, zap.String("status", string(status)), zap.Error(err))
		return res
	}

	out.transition(qlog, StateSearching)
	qlog.Info(fmt.Sprintf("🔍 Searching for keyword (%d/%d): '%s'", i+1, total, query))

	box, err := sess.WaitPresent(ctx, r.Input, timeout)
	if err != nil {
		return fail(StatusInputNotFound, "Search box not found, skipping", err)
	}

	if err := box.Clear(); err != nil {
		return fail(StatusInteractionFailed, "Could not clear the search box", err)
	}

	qlog.Info(fmt.Sprintf("⌨️ Typing '%s' into the search box...", query))
	if err := r.typeQuery(ctx, box, query, pacer); err != nil {
		return fail(StatusInteractionFailed, "Could not type the query", err)
	}

	qlog.Info("Submitting search...")
	if err := box.Submit(); err != nil {
		return fail(StatusInteractionFailed, "Could not submit the search", err)
	}

	out.transition(qlog, StateWaitingForResults)
	if _, err := sess.WaitPresent(ctx, r.Results, timeout); err != nil {
		return fail(StatusResultsTimeout, "Search results did not load", err)
	}

	res.Status = StatusLoaded
	qlog.Info(fmt.Sprintf("✅ Search results for '%s' loaded.", query))
	return res
}

func (r *Runner) typeQuery(ctx context.Context, box driver.Element, query string, pacer *humanize.Pacer) error {
	if r.Typing == nil {
		return box.SendText(query)
	}
	return humanize.TypeText(ctx, box, query, r.Typing, pacer)
}

func (r *Runner) runActions(ctx context.Context, logger *zap.Logger, sess driver.Session, actions []SessionAction) {
	for _, action := range actions {
		alog := logger.With(zap.String("action", action.Name()))
		alog.Debug("Running session action")
		if err := action.Apply(ctx, sess); err != nil {
			alog.Warn("Session action failed, continuing", zap.Error(err))
		}
	}
}

// release quits the browser. Run defers it exactly once per acquired session.
func (r *Runner) release(logger *zap.Logger, sess driver.Session, out *Outcome) {
	out.transition(logger, StateClosing)
	logger.Info("Closing the browser...")

	if err := sess.Quit(); err != nil {
		logger.Warn("Browser did not close cleanly", zap.Error(err))
	} else {
		logger.Info("Browser closed.")
	}

	out.SessionReleased = true
	out.transition(logger, StateClosed)
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger.Named("search")
}
