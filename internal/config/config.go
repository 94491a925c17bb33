package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/glyph-controller/internal/decision"
	"github.com/danielpatrickdp/glyph-controller/internal/gate"
	"github.com/danielpatrickdp/glyph-controller/internal/glyph"
)

// #region config

// Config is the full controller configuration. Durations are written as Go
// duration strings in YAML ("30s", "5m").
type Config struct {
	Decision      decision.Config `yaml:"decision"`
	Gate          gate.Config     `yaml:"gate"`
	PollInterval  time.Duration   `yaml:"poll_interval" validate:"gt=0"`
	ActionTimeout time.Duration   `yaml:"action_timeout" validate:"gt=0"`
	HistorySize   int             `yaml:"history_size" validate:"gte=1"`
	FeedBuffer    int             `yaml:"feed_buffer" validate:"gte=1"`
	DBPath        string          `yaml:"db_path"`
	FeedAddr      string          `yaml:"feed_addr"`
	MetricsAddr   string          `yaml:"metrics_addr"`
	Log           LogConfig       `yaml:"log"`
	Simulation    glyph.Config    `yaml:"simulation"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Decision:      decision.DefaultConfig(),
		Gate:          gate.DefaultConfig(),
		PollInterval:  30 * time.Second,
		ActionTimeout: 30 * time.Second,
		HistorySize:   100,
		FeedBuffer:    64,
		DBPath:        "glyph-controller.db",
		FeedAddr:      "127.0.0.1:7400",
		MetricsAddr:   "127.0.0.1:9400",
		Log:           LogConfig{Level: "info", Format: "json"},
		Simulation:    glyph.DefaultConfig(),
	}
}

// #endregion config

// #region errors

// ConfigurationError reports an invalid configuration. Startup fails on it.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// #endregion errors

// #region load

// Env variable names applied over the file values.
const (
	EnvDB          = "GLYPH_DB"
	EnvFeedAddr    = "GLYPH_FEED_ADDR"
	EnvMetricsAddr = "GLYPH_METRICS_ADDR"
	EnvLogLevel    = "GLYPH_LOG_LEVEL"
)

// Load reads a YAML file over Default(), applies env overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides addresses, database path and log level from the
// environment. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDB); ok {
		c.DBPath = v
	}
	if v, ok := lookup(EnvFeedAddr); ok {
		c.FeedAddr = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
}

// #endregion load

// #region validate

var validate = validator.New()

// Validate checks struct tags, then the cross-field rules tags cannot
// express. The first violation is returned as a *ConfigurationError.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigurationError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed %q (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigurationError{Reason: err.Error()}
	}

	d := c.Decision
	if d.HysteresisRaise >= d.BaseThreshold {
		return &ConfigurationError{
			Field:  "Config.Decision.HysteresisRaise",
			Reason: fmt.Sprintf("raise %.4f must be below base threshold %.4f", d.HysteresisRaise, d.BaseThreshold),
		}
	}
	if d.BaseThreshold+d.HysteresisRaise > 1 {
		return &ConfigurationError{
			Field:  "Config.Decision.BaseThreshold",
			Reason: "base threshold plus raise exceeds 1",
		}
	}
	return nil
}

// #endregion validate
