// Package config loads the settings of the embedding process (cmd/eventsd):
// the core scheduler packages themselves take no environment variables.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// PollIntervalSec caps how long the driver task sleeps between checks
	// of the in-memory activation queue, even without a condition-variable
	// signal. These wakeups do not re-read the catalog.
	PollIntervalSec int `env:"POLL_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=60"`

	WorkerCount int `env:"WORKER_COUNT" envDefault:"10" validate:"min=1,max=200"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// AdminJWTSecret signs/verifies bearer tokens on the admin HTTP
	// surface; the subject claim becomes the definer recorded on events
	// created through that surface.
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET,required" validate:"required"`

	// NotifyEnabled turns on the optional failure-notification email path.
	NotifyEnabled bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	ResendAPIKey  string `env:"RESEND_API_KEY" validate:"required_if=NotifyEnabled true"`
	ResendFrom    string `env:"RESEND_FROM"    validate:"required_if=NotifyEnabled true"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
