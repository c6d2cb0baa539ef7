package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cryptocrawl/models"
)

type Config struct {
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Logging  LoggingConfig  `yaml:"logging"`
	Reader   ReaderConfig   `yaml:"reader"`
	Engine   EngineConfig   `yaml:"engine"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type CrawlerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// ReaderConfig bounds the REST collaborators: discovery and snapshot fetch.
type ReaderConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

// EngineConfig bounds the streaming connection engine.
type EngineConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	BackoffMin    time.Duration `yaml:"backoff_min"`
	BackoffMax    time.Duration `yaml:"backoff_max"`
	MaxReconnects int           `yaml:"max_reconnects"`
}

type SnapshotConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

type SourceConfig struct {
	Binance ExchangeSourceConfig `yaml:"binance"`
	Huobi   ExchangeSourceConfig `yaml:"huobi"`
	Okx     ExchangeSourceConfig `yaml:"okx"`
	Bybit   ExchangeSourceConfig `yaml:"bybit"`
	Kucoin  ExchangeSourceConfig `yaml:"kucoin"`
	Bithumb ExchangeSourceConfig `yaml:"bithumb"`
}

// ExchangeSourceConfig carries per-exchange policy the adapters cannot know:
// a subscription cap override and the documented fallback symbol lists used
// when discovery fails, keyed by market type. An absent list means discovery
// failure is fatal for that market.
type ExchangeSourceConfig struct {
	MaxSubscriptions int                 `yaml:"max_subscriptions"`
	FallbackSymbols  map[string][]string `yaml:"fallback_symbols"`
}

// Fallback returns the configured fallback symbol list for a market type.
func (e ExchangeSourceConfig) Fallback(market models.MarketType) []string {
	if e.FallbackSymbols == nil {
		return nil
	}
	return e.FallbackSymbols[market.String()]
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Prefix          string        `yaml:"prefix"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
	Region     string `yaml:"region"`
}

// Exchange returns the source config for the named exchange.
func (c *Config) Exchange(name string) ExchangeSourceConfig {
	switch strings.ToLower(name) {
	case "binance":
		return c.Source.Binance
	case "huobi":
		return c.Source.Huobi
	case "okx", "okex":
		return c.Source.Okx
	case "bybit":
		return c.Source.Bybit
	case "kucoin":
		return c.Source.Kucoin
	case "bithumb":
		return c.Source.Bithumb
	}
	return ExchangeSourceConfig{}
}

// DefaultConfig returns a configuration with working defaults for every
// tunable. LoadConfig starts from it, so a partial yaml file is fine.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{Name: "cryptocrawl", Version: "dev"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Reader: ReaderConfig{
			Timeout: 10 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         time.Second,
				MaxDelay:          30 * time.Second,
				BackoffMultiplier: 2,
			},
		},
		Engine: EngineConfig{
			IdleTimeout:   60 * time.Second,
			BackoffMin:    time.Second,
			BackoffMax:    time.Minute,
			MaxReconnects: 10,
		},
		Snapshot: SnapshotConfig{IntervalMs: 10000},
		Storage:  StorageConfig{S3: S3Config{FlushInterval: time.Minute}},
		Metrics:  MetricsConfig{Namespace: "CryptoCrawl"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvironment(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Crawler.Name == "" {
		return fmt.Errorf("crawler.name is required")
	}
	if cfg.Reader.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("reader.retry.max_attempts must be greater than 0")
	}
	if cfg.Engine.MaxReconnects <= 0 {
		return fmt.Errorf("engine.max_reconnects must be greater than 0")
	}
	if cfg.Engine.IdleTimeout <= 0 {
		return fmt.Errorf("engine.idle_timeout must be greater than 0")
	}
	if cfg.Snapshot.IntervalMs <= 0 {
		return fmt.Errorf("snapshot.interval_ms must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
	}

	return nil
}
