// Package stealth builds a browser launch profile that hides the usual
// automation fingerprints from the search site
package stealth

import (
	"fmt"
	"math/rand"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Profile is the fingerprint presented by a stealth browser
type Profile struct {
	UserAgent string
	Viewport  Viewport
}

// Viewport represents browser window dimensions
type Viewport struct {
	Width  int
	Height int
}

// Common realistic viewport sizes (desktop)
var commonViewports = []Viewport{
	{1920, 1080}, // Full HD (most common)
	{1366, 768},  // HD (laptops)
	{1536, 864},  // Common laptop
	{1440, 900},  // MacBook
	{1280, 720},  // HD
	{1600, 900},  // HD+
	{1680, 1050}, // WSXGA+
	{1920, 1200}, // WUXGA
}

// Common realistic user agents (Chromium based, since rod drives Chromium)
var commonUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// NewProfile returns a randomized profile. A non-empty userAgent overrides the random pick.
func NewProfile(rnd *rand.Rand, userAgent string) *Profile {
	if userAgent == "" {
		userAgent = commonUserAgents[rnd.Intn(len(commonUserAgents))]
	}
	return &Profile{
		UserAgent: userAgent,
		Viewport:  randomViewport(rnd),
	}
}

// randomViewport picks a common size and nudges it by up to ±10px
func randomViewport(rnd *rand.Rand) Viewport {
	vp := commonViewports[rnd.Intn(len(commonViewports))]
	vp.Width += rnd.Intn(21) - 10
	vp.Height += rnd.Intn(21) - 10
	return vp
}

// ConfigureLauncher adds anti-detection flags to l
//
//   - "disable-blink-features=AutomationControlled" keeps navigator.webdriver unset
//   - "no-first-run" and "no-default-browser-check" skip dialogs that would cover the page
//   - "disable-dev-shm-usage" prevents crashes in containers
func ConfigureLauncher(l *launcher.Launcher, p *Profile) *launcher.Launcher {
	return l.
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", p.Viewport.Width, p.Viewport.Height)).
		Set("user-agent", p.UserAgent)
}

// SetupPage applies the profile to a page before any navigation
func SetupPage(page *rod.Page, p *Profile) error {
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             p.Viewport.Width,
		Height:            p.Viewport.Height,
		DeviceScaleFactor: 1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: p.UserAgent})
	if err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}

	if _, err := page.EvalOnNewDocument(Script()); err != nil {
		return fmt.Errorf("failed to inject stealth script: %w", err)
	}

	return nil
}

// Script returns JavaScript that masks automation fingerprints.
// It must run before the site's own scripts.
func Script() string {
	return `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
		configurable: true
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
		configurable: true
	});

	Object.defineProperty(navigator, 'hardwareConcurrency', {
		get: () => 8,
		configurable: true
	});

	Object.defineProperty(navigator, 'maxTouchPoints', {
		get: () => 0,
		configurable: true
	});

	if (!window.chrome) {
		window.chrome = {};
	}
	if (!window.chrome.runtime) {
		window.chrome.runtime = {};
	}

	const originalQuery = window.navigator.permissions?.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications' ?
				Promise.resolve({ state: Notification.permission }) :
				originalQuery(parameters)
		);
	}
	`
}
