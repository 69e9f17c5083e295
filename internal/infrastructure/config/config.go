package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Pool      PoolConfig
	Broker    BrokerConfig
	Scope     ScopeConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string `envconfig:"PORT" default:"8000"`
	Host     string `envconfig:"HOST" default:"127.0.0.1"`
	Compress bool   `envconfig:"SERVER_COMPRESS" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for the command routes.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// PoolConfig holds pooled client configuration.
type PoolConfig struct {
	Capacity  int    `envconfig:"POOL_CAPACITY" default:"16"`
	UserAgent string `envconfig:"POOL_USER_AGENT" default:"cookiefetch/1.0"`
}

// BrokerConfig holds session broker configuration.
type BrokerConfig struct {
	ChannelDepth int `envconfig:"BROKER_CHANNEL_DEPTH" default:"32"`
}

// ScopeConfig holds the URL allowlist sources.
type ScopeConfig struct {
	// Allowlist is a comma separated list of glob patterns.
	Allowlist []string `envconfig:"SCOPE_ALLOWLIST"`
	// Source is a file path or http(s) URL holding more patterns.
	Source string `envconfig:"SCOPE_SOURCE"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     "8000",
			Host:     "127.0.0.1",
			Compress: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Pool: PoolConfig{
			Capacity:  16,
			UserAgent: "cookiefetch/1.0",
		},
		Broker: BrokerConfig{
			ChannelDepth: 32,
		},
	}
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if c.Pool.Capacity <= 0 {
		return fmt.Errorf("POOL_CAPACITY must be positive, got %d", c.Pool.Capacity)
	}
	if c.Broker.ChannelDepth <= 0 {
		return fmt.Errorf("BROKER_CHANNEL_DEPTH must be positive, got %d", c.Broker.ChannelDepth)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}

	patterns := c.Scope.Allowlist[:0]
	for _, p := range c.Scope.Allowlist {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	c.Scope.Allowlist = patterns
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
