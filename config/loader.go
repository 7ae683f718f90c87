package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/intent"
	"github.com/hupe1980/routemesh/routing"
	sessionredis "github.com/hupe1980/routemesh/session/redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ROUTEMESH_"

const maxConfigFileSize = 1024 * 1024 // 1MB

// defaults is loaded as the lowest layer so that explicit zero values in the
// file or environment (e.g. a threshold of 0) are kept.
var defaults = fmt.Sprintf(`
routing:
  level: %s
  stickiness_threshold: %v
  history_limit: %d
model:
  provider: openai
  name: gpt-4o-mini
intent:
  lookback_messages: %d
session:
  backend: memory
logging:
  level: info
  format: text
metrics:
  namespace: routemesh
`, core.DefaultLevel, routing.DefaultStickinessThreshold, classifier.DefaultHistoryLimit, intent.DefaultLookbackMessages)

// Load reads configuration from an optional YAML file and the environment.
// An empty path skips the file.
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix:
//
//	ROUTEMESH_ROUTING_STICKINESS_THRESHOLD -> routing.stickiness_threshold
//	ROUTEMESH_REDIS_ADDR -> redis.addr
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}
		content, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return LoadBytes(content)
}

// LoadBytes is Load for an in-memory YAML document.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps ROUTEMESH_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	if cfg.Routing.Level == "" {
		cfg.Routing.Level = core.DefaultLevel
	}
	if cfg.Intent.LookbackMessages <= 0 {
		cfg.Intent.LookbackMessages = intent.DefaultLookbackMessages
	}

	cfg.Model.Provider = strings.ToLower(cfg.Model.Provider)
	cfg.Session.Backend = strings.ToLower(cfg.Session.Backend)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if cfg.Session.Backend == BackendRedis {
		if cfg.Session.Prefix == "" {
			cfg.Session.Prefix = sessionredis.DefaultPrefix
		}
		if cfg.Session.LockTTL == 0 {
			cfg.Session.LockTTL = sessionredis.DefaultLockTTL
		}
	}
}
