// Package config loads driver and pool settings from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the settings a composition root needs to build a pool.
type Config struct {
	// Driver selects the backend: "memory" or "neo4j".
	Driver string `yaml:"driver" env:"GORIENT_DRIVER" validate:"required,oneof=memory neo4j"`

	// Database connection, used by network drivers.
	URI      string `yaml:"uri" env:"GORIENT_URI" validate:"required_unless=Driver memory"`
	Username string `yaml:"username" env:"GORIENT_USERNAME"`
	Password string `yaml:"password" env:"GORIENT_PASSWORD"`
	Database string `yaml:"database" env:"GORIENT_DATABASE"`

	// ConnectTimeout bounds initial connectivity verification.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"GORIENT_CONNECT_TIMEOUT" validate:"gt=0"`

	// LogLevel is the zap level name ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level" env:"GORIENT_LOG_LEVEL" validate:"oneof=debug info warn error"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the optional circuit breaker around the pool.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled" env:"GORIENT_BREAKER_ENABLED"`
	MaxRequests      uint32        `yaml:"max_requests" env:"GORIENT_BREAKER_MAX_REQUESTS"`
	Interval         time.Duration `yaml:"interval" env:"GORIENT_BREAKER_INTERVAL"`
	Timeout          time.Duration `yaml:"timeout" env:"GORIENT_BREAKER_TIMEOUT"`
	FailureThreshold float64       `yaml:"failure_threshold" env:"GORIENT_BREAKER_FAILURE_THRESHOLD" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" env:"GORIENT_BREAKER_MIN_REQUESTS"`
}

// Default returns the baseline configuration: the in-memory driver with the
// breaker disabled.
func Default() Config {
	return Config{
		Driver:         "memory",
		ConnectTimeout: 10 * time.Second,
		LogLevel:       "info",
		Breaker: BreakerConfig{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
	}
}

// Load starts from Default, layers the YAML file over it (skipped when path
// is empty), applies environment overrides on top of that, and validates
// the result. Defaults live in code rather than envDefault tags so a YAML
// value set to something other than the default survives an unset
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
