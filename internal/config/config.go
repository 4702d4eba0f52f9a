// Package config loads application settings from flags, environment,
// an optional config file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dozken/translate-ai-pdf/internal/segment"
)

const EnvPrefix = "TRANSLATE"

var defaultDB = filepath.Join("data", "ledger.db")

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config holds all configuration values.
type Config struct {
	Provider    string `mapstructure:"provider"`
	Model       string `mapstructure:"model"`
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Credentials string `mapstructure:"credentials"`
	SourceLang  string `mapstructure:"source_lang"`
	TargetLang  string `mapstructure:"target_lang"`
	DB          string `mapstructure:"db"`
	Validate    bool   `mapstructure:"validate"`

	Segment segment.Config `mapstructure:"segment"`
	Driver  DriverConfig   `mapstructure:"driver"`
	Log     LogConfig      `mapstructure:"log"`
}

// DriverConfig holds the run loop settings as they are decoded. The
// translate command turns them into the driver's own configuration.
type DriverConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	Delay        time.Duration `mapstructure:"delay"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	Stream       bool          `mapstructure:"stream"`
	RetryFailed  bool          `mapstructure:"retry_failed"`
	ContextWords int           `mapstructure:"context_words"`
	Workers      int           `mapstructure:"workers"`
	Instructions string        `mapstructure:"instructions"`
}

// legacyEnv maps config keys to the environment names used by earlier
// releases. They are consulted after the TRANSLATE_ names.
var legacyEnv = map[string]string{
	"source_lang":          "SOURCE_LANGUAGE",
	"target_lang":          "TARGET_LANGUAGE",
	"driver.max_retries":   "MAX_RETRIES",
	"driver.workers":       "MAX_WORKERS",
	"driver.stream":        "ENABLE_STREAMING",
	"driver.delay_seconds": "TRANSLATION_DELAY_SECONDS",
	"progress_dir":         "PROGRESS_STORAGE_DIR",
	"log.level":            "LOG_LEVEL",
	"log.file":             "LOG_FILE",
	"keys.anthropic":       "ANTHROPIC_API_KEY",
	"keys.openai":          "OPENAI_API_KEY",
	"keys.googleai":        "GOOGLE_API_KEY",
	"keys.openrouter":      "OPENROUTER_API_KEY",
}

// SetDefaults registers every known key so that environment overrides are
// picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	seg := segment.DefaultConfig()

	v.SetDefault("provider", "anthropic")
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("credentials", "")
	v.SetDefault("source_lang", "ar")
	v.SetDefault("target_lang", "ru")
	v.SetDefault("db", defaultDB)
	v.SetDefault("validate", false)

	v.SetDefault("segment.min_length", seg.MinLength)
	v.SetDefault("segment.target_size", seg.TargetSize)
	v.SetDefault("segment.max_paragraph_size", seg.MaxParagraphSize)
	v.SetDefault("segment.substantial_threshold", seg.SubstantialThreshold)
	v.SetDefault("segment.fallback_fill", seg.FallbackFill)
	v.SetDefault("segment.alert_threshold", seg.AlertThreshold)

	v.SetDefault("driver.max_retries", 3)
	v.SetDefault("driver.delay", 500*time.Millisecond)
	v.SetDefault("driver.backoff_base", 2*time.Second)
	v.SetDefault("driver.backoff_max", time.Minute)
	v.SetDefault("driver.stale_after", 10*time.Minute)
	v.SetDefault("driver.poll_interval", time.Second)
	v.SetDefault("driver.call_timeout", 2*time.Minute)
	v.SetDefault("driver.stream", false)
	v.SetDefault("driver.retry_failed", false)
	v.SetDefault("driver.context_words", segment.DefaultContextWords)
	v.SetDefault("driver.workers", 1)
	v.SetDefault("driver.instructions", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads the configuration. When configFile is set it must exist.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", legacy, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if v.IsSet("driver.delay_seconds") {
		cfg.Driver.Delay = time.Duration(v.GetFloat64("driver.delay_seconds") * float64(time.Second))
	}
	if dir := v.GetString("progress_dir"); dir != "" && cfg.DB == defaultDB {
		cfg.DB = filepath.Join(dir, "ledger.db")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = v.GetString("keys." + cfg.Provider)
	}

	return cfg, cfg.Check()
}

// Check validates the loaded values. Segmentation thresholds are checked by
// segment.Config.Validate and reported unchanged.
func (c Config) Check() error {
	var errs []error
	if c.Driver.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("driver.max_retries must not be negative, got %d", c.Driver.MaxRetries))
	}
	if c.Driver.Workers < 1 {
		errs = append(errs, fmt.Errorf("driver.workers must be at least 1, got %d", c.Driver.Workers))
	}
	for name, d := range map[string]time.Duration{
		"driver.delay":         c.Driver.Delay,
		"driver.backoff_base":  c.Driver.BackoffBase,
		"driver.backoff_max":   c.Driver.BackoffMax,
		"driver.stale_after":   c.Driver.StaleAfter,
		"driver.poll_interval": c.Driver.PollInterval,
		"driver.call_timeout":  c.Driver.CallTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, d))
		}
	}
	if c.TargetLang == "" {
		errs = append(errs, errors.New("target_lang is required"))
	}
	if err := c.Segment.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
