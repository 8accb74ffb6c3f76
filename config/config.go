// Package config loads the node's YAML configuration and fills in defaults
// for anything left unset.
package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"tensor-rpc/dispatch"
	"tensor-rpc/wire"
)

// Config is the top-level node configuration.
type Config struct {
	Codec     CodecConfig     `yaml:"codec"`
	Registry  RegistryConfig  `yaml:"registry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// CodecConfig tunes the wire codec and dispatch layers.
type CodecConfig struct {
	// MinRecopyBytes is the minimum absolute saving before a sparse tensor
	// view is densified for transmission.
	MinRecopyBytes int `yaml:"min_recopy_bytes"`
	// MaxNestingDepth bounds forward-autograd payload unwrapping.
	MaxNestingDepth int `yaml:"max_nesting_depth"`
}

// RegistryConfig configures the etcd worker registry.
type RegistryConfig struct {
	Endpoints  []string `yaml:"endpoints"`
	TTLSeconds int64    `yaml:"ttl_seconds"`
}

// RateLimitConfig configures the inbound rate-limit middleware.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Codec.MinRecopyBytes == 0 {
		cfg.Codec.MinRecopyBytes = wire.DefaultMinRecopyBytes
	}
	if cfg.Codec.MaxNestingDepth == 0 {
		cfg.Codec.MaxNestingDepth = dispatch.DefaultMaxNestingDepth
	}
	if len(cfg.Registry.Endpoints) == 0 {
		cfg.Registry.Endpoints = []string{"localhost:2379"}
	}
	if cfg.Registry.TTLSeconds == 0 {
		cfg.Registry.TTLSeconds = 10
	}
	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 1000
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 2000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LogLevel parses the configured level, defaulting to info on bad input.
func (c *Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
