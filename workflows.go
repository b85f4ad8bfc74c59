package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Nehilsa2/query_runner/auth"
	"github.com/Nehilsa2/query_runner/config"
	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/humanize"
	"github.com/Nehilsa2/query_runner/search"
	"github.com/Nehilsa2/query_runner/stealth"
)

// RunQueries searches every query in the configured file through a real browser
func RunQueries(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*search.Outcome, error) {
	runner, err := newRunner(cfg, logger)
	if err != nil {
		return nil, err
	}
	return runWorkflow(ctx, runner, cfg, logger)
}

func runWorkflow(ctx context.Context, runner *search.Runner, cfg *config.Config, logger *zap.Logger) (*search.Outcome, error) {
	fmt.Println("\n==================================================")
	fmt.Println("🔍 SEARCH WORKFLOW")
	fmt.Println("==================================================")

	out, err := runner.Run(ctx, search.Options{
		QueriesFile:          cfg.Search.QueriesFile,
		MinDelaySeconds:      cfg.Search.MinDelaySeconds,
		MaxDelaySeconds:      cfg.Search.MaxDelaySeconds,
		ActionTimeoutSeconds: cfg.Search.ActionTimeoutSeconds,
	})
	printSummary(logger, out)
	return out, err
}

// newRunner assembles the runner from configuration; config.Validate has
// already checked every locator and typing speed
func newRunner(cfg *config.Config, logger *zap.Logger) (*search.Runner, error) {
	input, err := driver.ParseLocator(cfg.Search.InputLocator)
	if err != nil {
		return nil, fmt.Errorf("search.input_locator: %w", err)
	}
	results, err := driver.ParseLocator(cfg.Search.ResultsLocator)
	if err != nil {
		return nil, fmt.Errorf("search.results_locator: %w", err)
	}

	rnd := humanize.NewRand()

	opts := driver.RodOptions{
		Bin:        cfg.Browser.Bin,
		ProfileDir: cfg.Browser.ProfileDir,
		Headless:   cfg.Browser.Headless,
		Leakless:   cfg.Browser.Leakless,
	}
	if cfg.Browser.Stealth {
		opts.Stealth = stealth.NewProfile(rnd, cfg.Browser.UserAgent)
		opts.Mouse = stealth.NewMouse(stealth.DefaultMouseConfig(), rnd, humanize.Sleep)
		logger.Info("Stealth profile enabled",
			zap.String("user_agent", opts.Stealth.UserAgent),
			zap.Int("width", opts.Stealth.Viewport.Width),
			zap.Int("height", opts.Stealth.Viewport.Height))
	}

	runner := &search.Runner{
		Launcher: driver.NewRodLauncher(opts, logger),
		HomeURL:  cfg.Search.HomeURL,
		Input:    input,
		Results:  results,
		Maximize: cfg.Browser.Maximize,
		Logger:   logger,
		Sleep:    humanize.Sleep,
		Rand:     rnd,
	}

	if cfg.SignIn.Enabled {
		button, err := driver.ParseLocator(cfg.SignIn.Locator)
		if err != nil {
			return nil, fmt.Errorf("sign_in.locator: %w", err)
		}
		runner.BeforeNavigate = append(runner.BeforeNavigate, &auth.ProfileSignIn{
			SettingsURL: cfg.SignIn.SettingsURL,
			Button:      button,
			Timeout:     seconds(cfg.SignIn.TimeoutSeconds),
			Settle:      seconds(cfg.SignIn.SettleSeconds),
			Sleep:       humanize.Sleep,
			Logger:      logger,
		})
	}

	if cfg.Consent.Enabled {
		button, err := driver.ParseLocator(cfg.Consent.Locator)
		if err != nil {
			return nil, fmt.Errorf("consent.locator: %w", err)
		}
		runner.AfterNavigate = append(runner.AfterNavigate, &search.ConsentDismisser{
			Button:  button,
			Timeout: seconds(cfg.Consent.TimeoutSeconds),
			Settle:  seconds(cfg.Consent.SettleSeconds),
			Sleep:   humanize.Sleep,
			Logger:  logger,
		})
	}

	if cfg.Search.HumanTyping {
		typing, err := humanize.TypingConfigByName(cfg.Search.TypingSpeed)
		if err != nil {
			return nil, err
		}
		runner.Typing = typing
	}

	return runner, nil
}

func printSummary(logger *zap.Logger, out *search.Outcome) {
	if out == nil {
		return
	}
	fmt.Println("\n==================================================")
	fmt.Println("📊 RUN SUMMARY")
	fmt.Println("==================================================")
	fmt.Printf("Queries:             %d\n", len(out.Queries))
	fmt.Printf("Results loaded:      %d\n", out.Count(search.StatusLoaded))
	fmt.Printf("Results timed out:   %d\n", out.Count(search.StatusResultsTimeout))
	fmt.Printf("Search box missing:  %d\n", out.Count(search.StatusInputNotFound))
	fmt.Printf("Interaction failed:  %d\n", out.Count(search.StatusInteractionFailed))

	var waited time.Duration
	for _, d := range out.Delays {
		waited += d
	}

	logger.Info("Run finished",
		zap.String("run_id", out.RunID),
		zap.Stringer("state", out.State()),
		zap.Int("queries", len(out.Queries)),
		zap.Int("submitted", out.Submitted()),
		zap.Duration("waited", waited),
		zap.Bool("session_released", out.SessionReleased))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
