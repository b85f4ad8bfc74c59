// Package auth signs the browser profile in through the browser's own settings
// page, so searches run under a synced account
package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/humanize"
)

// ProfileSignIn triggers the profile sync sign-in flow. It is a UI heuristic
// tied to the browser's settings page, so callers treat failures as non-fatal.
type ProfileSignIn struct {
	SettingsURL string
	Button      driver.Locator
	Timeout     time.Duration
	// Settle is how long to wait after clicking for the sign-in flow to finish
	Settle time.Duration

	Sleep  humanize.SleepFunc
	Logger *zap.Logger
}

// Name identifies the action in logs
func (s *ProfileSignIn) Name() string { return "profile_sign_in" }

// Apply opens the settings page and clicks the sign-in control
func (s *ProfileSignIn) Apply(ctx context.Context, sess driver.Session) error {
	logger := s.logger()
	logger.Info("Opening browser profile settings", zap.String("url", s.SettingsURL))

	if err := sess.Navigate(ctx, s.SettingsURL); err != nil {
		return fmt.Errorf("failed to open settings page: %w", err)
	}

	button, err := sess.WaitClickable(ctx, s.Button, s.Timeout)
	if err != nil {
		return fmt.Errorf("sign-in button not found: %w", err)
	}

	if err := button.Click(); err != nil {
		return fmt.Errorf("failed to click sign-in button: %w", err)
	}

	logger.Info("Sign-in triggered, waiting for profile sync", zap.Duration("settle", s.Settle))

	sleep := s.Sleep
	if sleep == nil {
		sleep = humanize.Sleep
	}
	if err := sleep(ctx, s.Settle); err != nil {
		return err
	}

	logger.Info("✅ Profile sign-in completed")
	return nil
}

func (s *ProfileSignIn) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
