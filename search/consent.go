package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/humanize"
)

// ConsentDismisser clicks away a cookie consent overlay when one shows up.
// No overlay within Timeout is the normal case, not an error.
type ConsentDismisser struct {
	Button  driver.Locator
	Timeout time.Duration
	// Settle gives the banner time to disappear after the click
	Settle time.Duration

	Sleep  humanize.SleepFunc
	Logger *zap.Logger
}

// Name identifies the action in logs
func (c *ConsentDismisser) Name() string { return "consent_dismissal" }

// Apply waits for the accept button and clicks it
func (c *ConsentDismisser) Apply(ctx context.Context, sess driver.Session) error {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	button, err := sess.WaitClickable(ctx, c.Button, c.Timeout)
	if err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			logger.Info("No cookie consent pop-up found", zap.Duration("waited", c.Timeout))
			return nil
		}
		return fmt.Errorf("failed looking for consent pop-up: %w", err)
	}

	logger.Info("🍪 Cookie consent pop-up found. Clicking accept.")
	if err := button.Click(); err != nil {
		return fmt.Errorf("failed to click consent button: %w", err)
	}

	sleep := c.Sleep
	if sleep == nil {
		sleep = humanize.Sleep
	}
	return sleep(ctx, c.Settle)
}
