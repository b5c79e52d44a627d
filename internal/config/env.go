package config

import (
	"fmt"
	"os"
	"time"
)

// Environment variables read by FromEnv.
const (
	EnvAnyLogicDir = "ANYLOGIC_DIR"
	EnvIdleTimeout = "EXPORT_IDLE_TIMEOUT"
	EnvLogLevel    = "LOG_LEVEL"
	EnvDatabaseURL = "DATABASE_URL"
)

// FromEnv returns base with values overridden from the environment.
// An unparsable EXPORT_IDLE_TIMEOUT is an error rather than silently ignored.
func FromEnv(base Config) (Config, error) {
	cfg := base
	if v := os.Getenv(EnvAnyLogicDir); v != "" {
		cfg.AnyLogicDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvIdleTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, &ValidationError{Message: fmt.Sprintf("invalid %s %q", EnvIdleTimeout, v), Cause: err}
		}
		cfg.IdleTimeout = Duration(d)
	}
	return cfg, nil
}
