package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Nehilsa2/query_runner/config"
	"github.com/Nehilsa2/query_runner/observability"
)

// Version is overridden at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	observability.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile, envFile string
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "query-runner",
		Short: "Runs a list of search queries through a real browser with human-like pacing",
		Long: `query-runner reads one search query per line from a text file, opens a
browser session, submits every query to the search site and waits for its
results page, sleeping a random number of seconds between queries.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(v, cfgFile, envFile)
			if err != nil {
				return err
			}
			cfg = loaded
			observability.InitializeLogger(cfg.Logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			logger.Info("Starting query-runner", zap.String("version", Version))

			_, err := RunQueries(cmd.Context(), cfg, logger)
			if errors.Is(err, context.Canceled) {
				logger.Warn("Interrupted, browser released")
				return nil
			}
			return err
		},
	}

	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	f := cmd.Flags()
	f.StringP("queries", "q", "", "file with one search query per line (default topics.txt)")
	f.Int("min-delay", 0, "minimum seconds between searches (default 5)")
	f.Int("max-delay", 0, "maximum seconds between searches (default 15)")
	f.Int("timeout", 0, "seconds to wait for the search box and for results (default 10)")
	f.String("home", "", "search site home page (default https://www.bing.com)")
	f.String("browser-bin", "", "browser executable; looked up on the system when empty")
	f.String("profile-dir", "", "persistent browser profile directory")
	f.Bool("headless", false, "run the browser without a window")
	f.Bool("stealth", false, "launch with the anti-automation profile")
	f.Bool("consent", true, "dismiss the cookie consent pop-up if it appears")
	f.Bool("sign-in", false, "trigger the browser profile sync sign-in before searching")
	f.Bool("human-typing", false, "type queries one keystroke at a time")
	f.String("log-level", "", "debug, info, warn or error (default info)")

	bindFlags(v, f, map[string]string{
		"search.queries_file":           "queries",
		"search.min_delay_seconds":      "min-delay",
		"search.max_delay_seconds":      "max-delay",
		"search.action_timeout_seconds": "timeout",
		"search.home_url":               "home",
		"search.human_typing":           "human-typing",
		"browser.bin":                   "browser-bin",
		"browser.profile_dir":           "profile-dir",
		"browser.headless":              "headless",
		"browser.stealth":               "stealth",
		"consent.enabled":               "consent",
		"sign_in.enabled":               "sign-in",
		"logger.level":                  "log-level",
	})

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// bindFlags lets a flag override its config key only when it is set explicitly
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// the root pre-run loads config, which printing a version does not need
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "query-runner version %s\n", Version)
		},
	}
}
