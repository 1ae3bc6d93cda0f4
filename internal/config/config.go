// Package config loads process configuration from the environment.
// Command-line flags override these values in package cli.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/caras/internal/engine"
)

// Config is the environment-level configuration of the caras binary.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `env:"CARAS_DB" envDefault:"caras.db"`

	// CodePrefix prefixes generated authorization codes.
	CodePrefix string `env:"CARAS_CODE_PREFIX" envDefault:"APS-"`

	// Overbooking is "reject" or "allow".
	Overbooking engine.OverbookingPolicy `env:"CARAS_OVERBOOKING" envDefault:"reject"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel slog.Level `env:"CARAS_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("CARAS_DB must not be empty")
	}
	p, err := engine.ParseOverbookingPolicy(string(c.Overbooking))
	if err != nil {
		return fmt.Errorf("CARAS_OVERBOOKING: %w", err)
	}
	c.Overbooking = p
	return nil
}
