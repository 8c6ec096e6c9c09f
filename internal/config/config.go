// Package config loads the service configuration from YAML and applies
// defaults and validation before anything else starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/ml"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Redis     RedisConfig               `yaml:"redis"`
	Database  DatabaseConfig            `yaml:"database"`
	ML        ml.Config                 `yaml:"ml"`
	Scoring   ScoringConfig             `yaml:"scoring"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Tokens    TokensConfig              `yaml:"tokens"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig configures the quote cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// DatabaseConfig configures the receipt store. An empty DSN disables
// persistence; receipts are then kept in memory only.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// ScoringConfig carries the ranking defaults applied when a request leaves
// them unset.
type ScoringConfig struct {
	DefaultMode      string        `yaml:"default_mode"`
	PreflightTimeout time.Duration `yaml:"preflight_timeout"`
	QuoteTimeout     time.Duration `yaml:"quote_timeout"`
}

// ProviderConfig describes one liquidity source integration.
type ProviderConfig struct {
	BaseURL               string        `yaml:"base_url"`
	SourceType            string        `yaml:"source_type"` // aggregator | dex
	IntegrationConfidence float64       `yaml:"integration_confidence"`
	Enabled               bool          `yaml:"enabled"`
	DeepLinkOnly          bool          `yaml:"deep_link_only"`
	RPS                   float64       `yaml:"rps"`
	Burst                 int           `yaml:"burst"`
	Timeout               time.Duration `yaml:"timeout"`
	Circuit               CircuitConfig `yaml:"circuit"`
}

// CircuitConfig configures the per-provider circuit breaker.
type CircuitConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	HalfOpenMax      uint32        `yaml:"half_open_max"`
}

// TokensConfig seeds the token classifier sets.
type TokensConfig struct {
	Known []string `yaml:"known"`
	Meme  []string `yaml:"meme"`
}

// Load reads, parses, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a runnable configuration with no providers.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with operational defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Redis.QuoteTTL == 0 {
		c.Redis.QuoteTTL = 10 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.ML.InferenceTimeout == 0 {
		c.ML.InferenceTimeout = 5 * time.Second
	}
	if c.ML.CacheSize == 0 {
		c.ML.CacheSize = ml.DefaultCacheSize
	}
	if c.ML.CacheTTL == 0 {
		c.ML.CacheTTL = ml.DefaultCacheTTL
	}
	if c.ML.ModelVersion == "" {
		c.ML.ModelVersion = "v1"
	}
	if c.ML.ModelsPath == "" {
		c.ML.ModelsPath = "models"
	}
	if c.Scoring.DefaultMode == "" {
		c.Scoring.DefaultMode = string(domain.ModeNormal)
	}
	if c.Scoring.PreflightTimeout == 0 {
		c.Scoring.PreflightTimeout = 3 * time.Second
	}
	if c.Scoring.QuoteTimeout == 0 {
		c.Scoring.QuoteTimeout = 5 * time.Second
	}

	for id, p := range c.Providers {
		if p.SourceType == "" {
			p.SourceType = string(domain.SourceAggregator)
		}
		if p.IntegrationConfidence == 0 {
			p.IntegrationConfidence = 0.5
		}
		if p.RPS == 0 {
			p.RPS = 5
		}
		if p.Burst == 0 {
			p.Burst = 10
		}
		if p.Timeout == 0 {
			p.Timeout = 5 * time.Second
		}
		if p.Circuit.FailureThreshold == 0 {
			p.Circuit.FailureThreshold = 5
		}
		if p.Circuit.OpenTimeout == 0 {
			p.Circuit.OpenTimeout = 30 * time.Second
		}
		if p.Circuit.HalfOpenMax == 0 {
			p.Circuit.HalfOpenMax = 1
		}
		c.Providers[id] = p
	}
}

// Validate checks for configuration values the service cannot run with.
func (c *Config) Validate() error {
	switch domain.Mode(c.Scoring.DefaultMode) {
	case domain.ModeSafe, domain.ModeNormal, domain.ModeDegen:
	default:
		return fmt.Errorf("scoring.default_mode %q: must be SAFE, NORMAL or DEGEN", c.Scoring.DefaultMode)
	}

	for id, p := range c.Providers {
		switch domain.SourceType(p.SourceType) {
		case domain.SourceAggregator, domain.SourceDEX:
		default:
			return fmt.Errorf("provider %s: source_type %q must be aggregator or dex", id, p.SourceType)
		}
		if p.IntegrationConfidence < 0 || p.IntegrationConfidence > 1 {
			return fmt.Errorf("provider %s: integration_confidence %v out of [0,1]", id, p.IntegrationConfidence)
		}
		if p.Enabled && !p.DeepLinkOnly && p.BaseURL == "" {
			return fmt.Errorf("provider %s: enabled without base_url", id)
		}
	}
	return nil
}

// ProviderMeta projects the provider table into the form the ranker reads.
func (c *Config) ProviderMeta() map[string]domain.ProviderMeta {
	meta := make(map[string]domain.ProviderMeta, len(c.Providers))
	for id, p := range c.Providers {
		meta[id] = domain.ProviderMeta{
			ProviderID:            id,
			SourceType:            domain.SourceType(p.SourceType),
			IntegrationConfidence: p.IntegrationConfidence,
			Enabled:               p.Enabled,
			Capabilities: domain.Capabilities{
				Quote:    true,
				BuildTx:  !p.DeepLinkOnly,
				DeepLink: p.DeepLinkOnly,
			},
		}
	}
	return meta
}
