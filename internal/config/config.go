package config

import (
	"fmt"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Port int
	Host string

	// Storage settings
	DBPath string

	// Policy settings
	PolicyDirectory string
	SchemaPath      string
	WatchPolicies   bool

	// DefaultTargetPct enables the built-in fallback policy when no policy
	// resolves for a subject. 0 disables the fallback.
	DefaultTargetPct float64

	// Recompute settings
	RecomputeInterval       time.Duration
	MaxConcurrentRecomputes int64

	// Operational settings
	GracefulShutdownTimeout time.Duration
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.PolicyDirectory == "" {
		return fmt.Errorf("policy directory is required")
	}

	if c.DefaultTargetPct < 0 || c.DefaultTargetPct > 100 {
		return fmt.Errorf("default target must be in [0, 100], got %v", c.DefaultTargetPct)
	}

	if c.RecomputeInterval <= 0 {
		return fmt.Errorf("recompute interval must be positive")
	}

	if c.MaxConcurrentRecomputes < 1 {
		return fmt.Errorf("max concurrent recomputes must be >= 1")
	}

	return nil
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		DBPath:                  "sentinel.db",
		SchemaPath:              "schemas/policy_v1.json",
		WatchPolicies:           true,
		RecomputeInterval:       time.Minute,
		MaxConcurrentRecomputes: 5,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
