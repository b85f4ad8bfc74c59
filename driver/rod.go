package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/Nehilsa2/query_runner/stealth"
)

// RodOptions configures how the browser process is launched
type RodOptions struct {
	// Bin is the browser executable. Empty means discover one on the system.
	Bin string
	// ProfileDir is a persistent user data dir. Empty means a throwaway profile.
	ProfileDir string
	Headless   bool
	Leakless   bool
	// Stealth enables the anti-automation launch profile when non-nil
	Stealth *stealth.Profile
	// Mouse, when set, moves the cursor along a curve before each click
	Mouse *stealth.Mouse
}

// RodLauncher starts browser sessions through go-rod
type RodLauncher struct {
	opts   RodOptions
	logger *zap.Logger
}

// NewRodLauncher creates a launcher for the given options
func NewRodLauncher(opts RodOptions, logger *zap.Logger) *RodLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodLauncher{opts: opts, logger: logger.Named("driver")}
}

// Start launches a browser, connects to it and opens the working page
func (r *RodLauncher) Start(ctx context.Context) (Session, error) {
	l := r.newLauncher()

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := r.openPage(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	r.logger.Debug("Browser session started", zap.String("control_url", controlURL))

	return &rodSession{
		launcher:    l,
		browser:     browser,
		page:        page,
		ownsProfile: r.opts.ProfileDir == "",
		mouse:       r.opts.Mouse,
		logger:      r.logger,
	}, nil
}

func (r *RodLauncher) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(r.opts.Headless).
		Leakless(r.opts.Leakless)

	switch {
	case r.opts.Bin != "":
		l = l.Bin(r.opts.Bin)
	default:
		if path, has := launcher.LookPath(); has {
			l = l.Bin(path)
		}
	}

	if r.opts.ProfileDir != "" {
		l = l.UserDataDir(r.opts.ProfileDir)
	}

	if r.opts.Stealth != nil {
		l = stealth.ConfigureLauncher(l, r.opts.Stealth)
	}

	return l
}

func (r *RodLauncher) openPage(browser *rod.Browser) (*rod.Page, error) {
	if r.opts.Stealth == nil {
		return browser.Page(proto.TargetCreateTarget{})
	}

	page, err := rodstealth.Page(browser)
	if err != nil {
		return nil, err
	}
	if err := stealth.SetupPage(page, r.opts.Stealth); err != nil {
		return nil, err
	}
	return page, nil
}

type rodSession struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	page        *rod.Page
	ownsProfile bool
	mouse       *stealth.Mouse
	logger      *zap.Logger
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	return nil
}

func (s *rodSession) Maximize(ctx context.Context) error {
	return s.page.Context(ctx).SetWindow(&proto.BrowserBounds{
		WindowState: proto.BrowserWindowStateMaximized,
	})
}

func (s *rodSession) WaitPresent(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	el, err := s.find(ctx, loc, timeout, false)
	if err != nil {
		return nil, err
	}
	return s.element(el), nil
}

func (s *rodSession) WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	el, err := s.find(ctx, loc, timeout, true)
	if err != nil {
		return nil, err
	}
	return s.element(el), nil
}

func (s *rodSession) element(el *rod.Element) *rodElement {
	return &rodElement{el: el, page: s.page, mouse: s.mouse}
}

// find runs the lookup under a deadline and rebinds the element to ctx so it
// stays usable after the deadline is released
func (s *rodSession) find(ctx context.Context, loc Locator, timeout time.Duration, clickable bool) (*rod.Element, error) {
	page := s.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	var el *rod.Element
	var err error
	if loc.By == ByXPath {
		el, err = page.ElementX(loc.Value)
	} else {
		el, err = page.Element(loc.Selector())
	}
	if err != nil {
		return nil, wrapWaitErr(loc, err)
	}

	if clickable {
		if err := el.WaitVisible(); err != nil {
			return nil, wrapWaitErr(loc, err)
		}
		if err := el.WaitEnabled(); err != nil {
			return nil, wrapWaitErr(loc, err)
		}
	}

	return el.Context(ctx), nil
}

func wrapWaitErr(loc Locator, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, loc)
	}
	return fmt.Errorf("waiting for %s: %w", loc, err)
}

func (s *rodSession) Quit() error {
	err := s.browser.Close()
	if err != nil {
		s.logger.Debug("Browser close failed, killing process", zap.Error(err))
		s.launcher.Kill()
	}

	// Cleanup removes the user data dir, so only run it for throwaway profiles
	if s.ownsProfile {
		s.launcher.Cleanup()
	}

	return err
}

type rodElement struct {
	el    *rod.Element
	page  *rod.Page
	mouse *stealth.Mouse
}

func (e *rodElement) Clear() error {
	if err := e.el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text: %w", err)
	}
	return e.el.Input("")
}

func (e *rodElement) SendText(text string) error {
	return e.el.Input(text)
}

func (e *rodElement) Submit() error {
	return e.el.Type(input.Enter)
}

func (e *rodElement) Click() error {
	if e.mouse != nil {
		ctx := e.el.GetContext()
		return e.mouse.Click(ctx, e.page.Context(ctx), e.el)
	}
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}
