// Package config provides configuration loading for routemesh.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables prefixed with ROUTEMESH_
//  2. YAML config file
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Supported session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the complete routemesh configuration.
type Config struct {
	Routing RoutingConfig `koanf:"routing"`
	Model   ModelConfig   `koanf:"model"`
	Intent  IntentConfig  `koanf:"intent"`
	Session SessionConfig `koanf:"session"`
	Redis   RedisConfig   `koanf:"redis"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// RoutingConfig holds router tunables.
type RoutingConfig struct {
	TopologyFile        string  `koanf:"topology_file"`        // YAML route topology
	Level               string  `koanf:"level"`                // level served by the router
	StickinessThreshold float64 `koanf:"stickiness_threshold"` // default 0.7
	HistoryLimit        int     `koanf:"history_limit"`        // messages shown to the classifier
}

// ModelConfig selects the classification model.
type ModelConfig struct {
	Provider    string  `koanf:"provider"`
	Name        string  `koanf:"name"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int64   `koanf:"max_tokens"`
}

// IntentConfig enables multi-intent classification.
type IntentConfig struct {
	Enabled          bool     `koanf:"enabled"`
	Categories       []string `koanf:"categories"`
	LookbackMessages int      `koanf:"lookback_messages"`
}

// SessionConfig selects the session backend.
type SessionConfig struct {
	Backend string        `koanf:"backend"`
	Prefix  string        `koanf:"prefix"`
	TTL     time.Duration `koanf:"ttl"`
	LockTTL time.Duration `koanf:"lock_ttl"`
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// LoggingConfig mirrors logging.LoggerConfig.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add_source"`
}

// MetricsConfig controls the prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	t := c.Routing.StickinessThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("invalid stickiness threshold: %v (must be 0.0-1.0)", t)
	}
	if c.Routing.HistoryLimit < 0 {
		return fmt.Errorf("invalid history limit: %d", c.Routing.HistoryLimit)
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("unknown model provider: %q", c.Model.Provider)
	}
	if c.Model.Provider != ProviderMock && c.Model.Name == "" {
		return errors.New("model name required")
	}

	if c.Intent.Enabled && len(c.Intent.Categories) == 0 {
		return errors.New("intent categories required when intent classification is enabled")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis address required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend: %q", c.Session.Backend)
	}
	if c.Session.TTL < 0 || c.Session.LockTTL < 0 {
		return errors.New("session ttl must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Logging.Format)
	}

	return nil
}
