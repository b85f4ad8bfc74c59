package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/driver/drivertest"
	"github.com/Nehilsa2/query_runner/humanize"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	inputLoc   = driver.ID("sb_form_q")
	resultsLoc = driver.ID("b_results")
)

type sleepRecorder struct {
	slept []time.Duration
	// cancel, when set, is called on the n-th sleep (1-based)
	cancelOn int
	cancel   context.CancelFunc
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	if s.cancel != nil && len(s.slept) == s.cancelOn {
		s.cancel()
	}
	return ctx.Err()
}

type testRig struct {
	runner   *Runner
	launcher *drivertest.Launcher
	session  *drivertest.Session
	sleeper  *sleepRecorder
}

func newRig(t *testing.T, logger *zap.Logger) *testRig {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	sess := drivertest.NewSession()
	launcher := &drivertest.Launcher{Session: sess}
	sleeper := &sleepRecorder{}

	return &testRig{
		runner: &Runner{
			Launcher: launcher,
			HomeURL:  "https://www.bing.com",
			Input:    inputLoc,
			Results:  resultsLoc,
			Logger:   logger,
			Sleep:    sleeper.Sleep,
			Rand:     rand.New(rand.NewSource(1)),
		},
		launcher: launcher,
		session:  sess,
		sleeper:  sleeper,
	}
}

func opts(t *testing.T, content string, min, max int) Options {
	return Options{
		QueriesFile:          writeQueries(t, content),
		MinDelaySeconds:      min,
		MaxDelaySeconds:      max,
		ActionTimeoutSeconds: 10,
	}
}

func statuses(out *Outcome) []Status {
	var s []Status
	for _, r := range out.Results {
		s = append(s, r.Status)
	}
	return s
}

func TestRun_TwoQueries(t *testing.T) {
	rig := newRig(t, nil)

	out, err := rig.runner.Run(context.Background(), opts(t, "rust vs go\nwasm gc\n", 5, 12))

	require.NoError(t, err)
	assert.Equal(t, []string{"rust vs go", "wasm gc"}, rig.session.Typed)
	assert.Equal(t, 2, rig.session.Submits)

	require.Len(t, out.Delays, 1)
	assert.GreaterOrEqual(t, out.Delays[0], 5*time.Second)
	assert.LessOrEqual(t, out.Delays[0], 12*time.Second)
	assert.Equal(t, out.Delays, rig.sleeper.slept)

	assert.Equal(t, 1, rig.session.Quits)
	assert.True(t, out.SessionAcquired)
	assert.True(t, out.SessionReleased)
	assert.Equal(t, []Status{StatusLoaded, StatusLoaded}, statuses(out))

	assert.Equal(t, []string{
		"navigate https://www.bing.com",
		"wait_present id=sb_form_q",
		"clear",
		"send rust vs go",
		"submit",
		"wait_present id=b_results",
		"wait_present id=sb_form_q",
		"clear",
		"send wasm gc",
		"submit",
		"wait_present id=b_results",
		"quit",
	}, rig.session.Calls)

	for _, w := range rig.session.Waits {
		assert.Equal(t, 10*time.Second, w)
	}
}

func TestRun_StateTrail(t *testing.T) {
	rig := newRig(t, nil)

	out, err := rig.runner.Run(context.Background(), opts(t, "a\nb\n", 0, 0))

	require.NoError(t, err)
	assert.Equal(t, []State{
		StateSessionStarting,
		StateSessionActive,
		StateSearching, StateWaitingForResults,
		StateSearching, StateWaitingForResults,
		StateClosing,
		StateClosed,
	}, out.States)
	assert.NotEmpty(t, out.RunID)
}

func TestRun_DelayCountAndBounds(t *testing.T) {
	for n := 0; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d queries", n), func(t *testing.T) {
			rig := newRig(t, zap.NewNop())
			rig.runner.Rand = rand.New(rand.NewSource(int64(n)))

			var lines []string
			for i := 0; i < n; i++ {
				lines = append(lines, fmt.Sprintf("query %d", i))
			}

			out, err := rig.runner.Run(context.Background(), opts(t, strings.Join(lines, "\n"), 3, 7))
			require.NoError(t, err)

			want := n - 1
			if want < 0 {
				want = 0
			}
			assert.Len(t, out.Delays, want)
			assert.Len(t, rig.sleeper.slept, want)
			for _, d := range out.Delays {
				assert.GreaterOrEqual(t, d, 3*time.Second)
				assert.LessOrEqual(t, d, 7*time.Second)
			}
			assert.Equal(t, n, rig.session.Submits)
			assert.Equal(t, 1, rig.session.Quits)
		})
	}
}

func TestRun_ResultsTimeoutDoesNotStopLaterQueries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rig := newRig(t, zap.New(core))
	rig.session.WaitHook = func(loc driver.Locator, n int) error {
		if loc == resultsLoc && n == 1 {
			return fmt.Errorf("%w: %s", driver.ErrTimeout, loc)
		}
		return nil
	}

	out, err := rig.runner.Run(context.Background(), opts(t, "rust vs go\nwasm gc\n", 5, 12))

	require.NoError(t, err)
	assert.Equal(t, []Status{StatusResultsTimeout, StatusLoaded}, statuses(out))
	assert.True(t, errors.Is(out.Results[0].Err, driver.ErrTimeout))
	assert.Equal(t, []string{"rust vs go", "wasm gc"}, rig.session.Typed)
	assert.Equal(t, 2, out.Submitted())
	assert.Len(t, out.Delays, 1)
	assert.Equal(t, 1, rig.session.Quits)
	assert.Equal(t, 1, logs.FilterMessage("Search results did not load").Len())
}

func TestRun_InputNotFoundSkipsQuery(t *testing.T) {
	rig := newRig(t, nil)
	rig.session.WaitHook = func(loc driver.Locator, n int) error {
		if loc == inputLoc && n == 2 {
			return fmt.Errorf("%w: %s", driver.ErrTimeout, loc)
		}
		return nil
	}

	out, err := rig.runner.Run(context.Background(), opts(t, "one\ntwo\nthree\n", 1, 1))

	require.NoError(t, err)
	assert.Equal(t, []Status{StatusLoaded, StatusInputNotFound, StatusLoaded}, statuses(out))
	assert.Equal(t, []string{"one", "three"}, rig.session.Typed)
	// a skipped query still paces the next one
	assert.Equal(t, []time.Duration{time.Second, time.Second}, out.Delays)
	assert.Equal(t, 1, rig.session.Quits)
}

func TestRun_InteractionFailuresAreIsolated(t *testing.T) {
	rig := newRig(t, nil)
	rig.session.SubmitErr = errors.New("element detached")

	out, err := rig.runner.Run(context.Background(), opts(t, "one\ntwo\n", 0, 0))

	require.NoError(t, err)
	assert.Equal(t, []Status{StatusInteractionFailed, StatusInteractionFailed}, statuses(out))
	assert.Zero(t, out.Submitted())
	assert.Equal(t, 1, rig.session.Quits)
}

func TestRun_SessionStartFailure(t *testing.T) {
	rig := newRig(t, nil)
	rig.launcher.Err = errors.New("msedgedriver not found")

	out, err := rig.runner.Run(context.Background(), opts(t, "one\ntwo\n", 0, 0))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionStart))
	assert.Contains(t, err.Error(), "msedgedriver not found")
	assert.False(t, out.SessionAcquired)
	assert.False(t, out.SessionReleased)
	assert.Empty(t, out.Results)
	assert.Empty(t, rig.session.Calls)
	assert.Equal(t, []State{StateSessionStarting, StateClosed}, out.States)
}

func TestRun_MissingQueriesFile(t *testing.T) {
	rig := newRig(t, nil)

	out, err := rig.runner.Run(context.Background(), Options{
		QueriesFile:          filepath.Join(t.TempDir(), "topics.txt"),
		MinDelaySeconds:      5,
		MaxDelaySeconds:      15,
		ActionTimeoutSeconds: 10,
	})

	require.NoError(t, err)
	require.Error(t, out.LoadErr)
	assert.Empty(t, out.Queries)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.Delays)
	assert.Equal(t, []string{"navigate https://www.bing.com", "quit"}, rig.session.Calls)
}

func TestRun_PanicStillReleases(t *testing.T) {
	rig := newRig(t, nil)
	rig.session.WaitHook = func(loc driver.Locator, n int) error {
		if loc == resultsLoc {
			panic("renderer crashed")
		}
		return nil
	}

	out, err := rig.runner.Run(context.Background(), opts(t, "one\ntwo\n", 0, 0))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpected))
	assert.Contains(t, err.Error(), "renderer crashed")
	assert.Equal(t, 1, rig.session.Quits)
	assert.True(t, out.SessionReleased)
	assert.Equal(t, StateClosed, out.State())
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rig := newRig(t, nil)
	rig.sleeper.cancel = cancel
	rig.sleeper.cancelOn = 1

	out, err := rig.runner.Run(ctx, opts(t, "one\ntwo\nthree\n", 2, 2))

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, out.Results, 1)
	assert.Equal(t, 1, rig.session.Quits)
	assert.Equal(t, StateClosed, out.State())
}

func TestRun_QuitErrorIsNotFatal(t *testing.T) {
	rig := newRig(t, nil)
	rig.session.QuitErr = errors.New("browser already gone")

	out, err := rig.runner.Run(context.Background(), opts(t, "one\n", 0, 0))

	require.NoError(t, err)
	assert.True(t, out.SessionReleased)
	assert.Equal(t, 1, rig.session.Quits)
}

type recordingAction struct {
	name string
	err  error
}

func (a *recordingAction) Name() string { return a.name }

func (a *recordingAction) Apply(ctx context.Context, sess driver.Session) error {
	// leave a marker in the session call log
	_ = sess.Navigate(ctx, "action://"+a.name)
	return a.err
}

func TestRun_SessionActionsOrderAndTolerance(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rig := newRig(t, zap.New(core))
	rig.runner.Maximize = true
	rig.runner.BeforeNavigate = []SessionAction{&recordingAction{name: "sign_in", err: errors.New("no sign-in button")}}
	rig.runner.AfterNavigate = []SessionAction{&recordingAction{name: "consent"}}

	out, err := rig.runner.Run(context.Background(), opts(t, "one\n", 0, 0))

	require.NoError(t, err)
	assert.Equal(t, []Status{StatusLoaded}, statuses(out))
	assert.Equal(t, []string{
		"maximize",
		"navigate action://sign_in",
		"navigate https://www.bing.com",
		"navigate action://consent",
		"wait_present id=sb_form_q",
		"clear",
		"send one",
		"submit",
		"wait_present id=b_results",
		"quit",
	}, rig.session.Calls)
	assert.Equal(t, 1, logs.FilterMessage("Session action failed, continuing").Len())
}

func TestRun_ToleratesMaximizeAndNavigateFailures(t *testing.T) {
	rig := newRig(t, nil)
	rig.runner.Maximize = true
	rig.session.MaximizeErr = errors.New("headless window")
	rig.session.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	out, err := rig.runner.Run(context.Background(), opts(t, "one\n", 0, 0))

	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
	assert.Equal(t, 1, rig.session.Quits)
}

func TestRun_HumanTyping(t *testing.T) {
	rig := newRig(t, nil)
	rig.runner.Typing = humanize.FastTypingConfig()

	out, err := rig.runner.Run(context.Background(), opts(t, "go\nrod\n", 4, 4))

	require.NoError(t, err)
	assert.Equal(t, []string{"g", "o", "r", "o", "d"}, rig.session.Typed)
	assert.Equal(t, []time.Duration{4 * time.Second}, out.Delays)
	// keystroke pauses go through the same sleeper as the inter-query delay
	assert.Len(t, rig.sleeper.slept, 5+1)
	assert.Equal(t, []Status{StatusLoaded, StatusLoaded}, statuses(out))
}

func TestRun_WithConsentDismisser(t *testing.T) {
	rig := newRig(t, nil)
	consentLoc := driver.XPath("//button[@id='bnp_btn_accept']")
	rig.session.Missing[consentLoc] = true
	rig.runner.AfterNavigate = []SessionAction{&ConsentDismisser{
		Button:  consentLoc,
		Timeout: 10 * time.Second,
		Settle:  2 * time.Second,
		Sleep:   rig.sleeper.Sleep,
	}}

	out, err := rig.runner.Run(context.Background(), opts(t, "one\n", 0, 0))

	require.NoError(t, err)
	assert.Equal(t, []Status{StatusLoaded}, statuses(out))
	assert.Zero(t, rig.session.Clicks)
	assert.Empty(t, rig.sleeper.slept)
}
