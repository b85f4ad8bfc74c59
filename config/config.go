// Package config loads runner settings from defaults, an optional YAML file,
// a .env file, QUERY_RUNNER_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/humanize"
)

// EnvPrefix is prepended to every environment variable viper looks at
const EnvPrefix = "QUERY_RUNNER"

// DefaultConsentXPath matches buttons labelled accept/agree, plus Bing's own banner button
const DefaultConsentXPath = "//button[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'accept')]" +
	" | //button[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'agree')]" +
	" | //button[@id='bnp_btn_accept']"

// Config holds the entire application configuration
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Consent ConsentConfig `mapstructure:"consent" yaml:"consent"`
	SignIn  SignInConfig  `mapstructure:"sign_in" yaml:"sign_in"`
}

// LoggerConfig controls the zap logger
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls how the browser is found and launched
type BrowserConfig struct {
	// Bin is the browser executable; empty means look it up on the system
	Bin        string `mapstructure:"bin" yaml:"bin"`
	ProfileDir string `mapstructure:"profile_dir" yaml:"profile_dir"`
	Headless   bool   `mapstructure:"headless" yaml:"headless"`
	Leakless   bool   `mapstructure:"leakless" yaml:"leakless"`
	Maximize   bool   `mapstructure:"maximize" yaml:"maximize"`
	Stealth    bool   `mapstructure:"stealth" yaml:"stealth"`
	UserAgent  string `mapstructure:"user_agent" yaml:"user_agent"`
}

// SearchConfig describes the query workflow against the search site
type SearchConfig struct {
	QueriesFile          string `mapstructure:"queries_file" yaml:"queries_file"`
	HomeURL              string `mapstructure:"home_url" yaml:"home_url"`
	InputLocator         string `mapstructure:"input_locator" yaml:"input_locator"`
	ResultsLocator       string `mapstructure:"results_locator" yaml:"results_locator"`
	MinDelaySeconds      int    `mapstructure:"min_delay_seconds" yaml:"min_delay_seconds"`
	MaxDelaySeconds      int    `mapstructure:"max_delay_seconds" yaml:"max_delay_seconds"`
	ActionTimeoutSeconds int    `mapstructure:"action_timeout_seconds" yaml:"action_timeout_seconds"`
	HumanTyping          bool   `mapstructure:"human_typing" yaml:"human_typing"`
	TypingSpeed          string `mapstructure:"typing_speed" yaml:"typing_speed"`
}

// ConsentConfig controls dismissal of the cookie consent overlay
type ConsentConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Locator        string `mapstructure:"locator" yaml:"locator"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	SettleSeconds  int    `mapstructure:"settle_seconds" yaml:"settle_seconds"`
}

// SignInConfig controls the profile sync sign-in on the browser settings page
type SignInConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	SettingsURL    string `mapstructure:"settings_url" yaml:"settings_url"`
	Locator        string `mapstructure:"locator" yaml:"locator"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	SettleSeconds  int    `mapstructure:"settle_seconds" yaml:"settle_seconds"`
}

// ActionTimeout is the bound applied to every element wait in the query loop
func (s SearchConfig) ActionTimeout() time.Duration {
	return time.Duration(s.ActionTimeoutSeconds) * time.Second
}

// SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "query-runner")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)

	// -- Browser --
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.leakless", false)
	v.SetDefault("browser.maximize", true)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.user_agent", "")

	// -- Search --
	v.SetDefault("search.queries_file", "topics.txt")
	v.SetDefault("search.home_url", "https://www.bing.com")
	v.SetDefault("search.input_locator", "id=sb_form_q")
	v.SetDefault("search.results_locator", "id=b_results")
	v.SetDefault("search.min_delay_seconds", 5)
	v.SetDefault("search.max_delay_seconds", 15)
	v.SetDefault("search.action_timeout_seconds", 10)
	v.SetDefault("search.human_typing", false)
	v.SetDefault("search.typing_speed", "default")

	// -- Consent --
	v.SetDefault("consent.enabled", true)
	v.SetDefault("consent.locator", "xpath="+DefaultConsentXPath)
	v.SetDefault("consent.timeout_seconds", 10)
	v.SetDefault("consent.settle_seconds", 2)

	// -- Sign in --
	v.SetDefault("sign_in.enabled", false)
	v.SetDefault("sign_in.settings_url", "edge://settings/profiles")
	v.SetDefault("sign_in.locator", "xpath=//button[contains(., 'Sign in')]")
	v.SetDefault("sign_in.timeout_seconds", 10)
	v.SetDefault("sign_in.settle_seconds", 5)
}

// Load reads a .env file when present, then the config file, environment and
// any flags already bound to v. An empty cfgFile searches ./config.yaml.
func Load(v *viper.Viper, cfgFile, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file; defaults, env and flags still apply
	}

	return NewConfigFromViper(v)
}

// loadDotEnv loads KEY=value pairs into the process environment.
// A missing file is not an error.
func loadDotEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}
	return nil
}

// NewConfigFromViper creates a validated configuration from a viper object
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values
func (c *Config) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if c.Consent.Enabled {
		if _, err := driver.ParseLocator(c.Consent.Locator); err != nil {
			return fmt.Errorf("consent.locator: %w", err)
		}
		if c.Consent.TimeoutSeconds <= 0 {
			return fmt.Errorf("consent.timeout_seconds must be a positive integer")
		}
	}
	if c.SignIn.Enabled {
		if c.SignIn.SettingsURL == "" {
			return fmt.Errorf("sign_in.settings_url is required when sign in is enabled")
		}
		if _, err := driver.ParseLocator(c.SignIn.Locator); err != nil {
			return fmt.Errorf("sign_in.locator: %w", err)
		}
		if c.SignIn.TimeoutSeconds <= 0 {
			return fmt.Errorf("sign_in.timeout_seconds must be a positive integer")
		}
	}
	if c.Consent.SettleSeconds < 0 || c.SignIn.SettleSeconds < 0 {
		return fmt.Errorf("settle_seconds cannot be negative")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}

// Validate checks the search workflow settings
func (s *SearchConfig) Validate() error {
	if s.HomeURL == "" {
		return fmt.Errorf("home_url is required")
	}
	if s.MinDelaySeconds < 0 || s.MaxDelaySeconds < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if s.MinDelaySeconds > s.MaxDelaySeconds {
		return fmt.Errorf("min_delay_seconds (%d) is greater than max_delay_seconds (%d)",
			s.MinDelaySeconds, s.MaxDelaySeconds)
	}
	if s.ActionTimeoutSeconds <= 0 {
		return fmt.Errorf("action_timeout_seconds must be a positive integer")
	}
	if _, err := driver.ParseLocator(s.InputLocator); err != nil {
		return fmt.Errorf("input_locator: %w", err)
	}
	if _, err := driver.ParseLocator(s.ResultsLocator); err != nil {
		return fmt.Errorf("results_locator: %w", err)
	}
	if _, err := humanize.TypingConfigByName(s.TypingSpeed); err != nil {
		return err
	}
	return nil
}
