// Package config loads catalog-select configuration from defaults, an
// optional YAML file, and environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/Sternrassler/catalog-select/pkg/logging"
	"github.com/Sternrassler/catalog-select/pkg/ratelimit"
	"github.com/Sternrassler/catalog-select/pkg/selection"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvBaseURL   = "CATALOG_BASE_URL"
	EnvPageSize  = "CATALOG_PAGE_SIZE"
	EnvUserAgent = "CATALOG_USER_AGENT"
	EnvRedisURL  = "REDIS_URL"
	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
)

// DefaultUserAgent identifies the client to the catalog API.
const DefaultUserAgent = "catalog-select/0.1.0"

// Config is the complete application configuration.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CatalogConfig configures the remote listing and the controller.
type CatalogConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Endpoint     string        `yaml:"endpoint"`
	UserAgent    string        `yaml:"user_agent"`
	PageSize     int           `yaml:"page_size"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxWalkPages int           `yaml:"max_walk_pages"`

	// WalkPageTimeout bounds one page of a select-first-N walk, retries
	// included. Zero disables the bound.
	WalkPageTimeout time.Duration `yaml:"walk_page_timeout"`
}

// RetryConfig configures caller-side retries. MaxAttempts of 1 disables them.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// RateLimitConfig configures local request pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RedisConfig configures the optional response cache. An empty URL
// disables caching.
type RedisConfig struct {
	// URL is either a redis:// URL or a host:port address.
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retry := catalog.DefaultRetryConfig()
	rl := ratelimit.DefaultConfig()

	return &Config{
		Catalog: CatalogConfig{
			BaseURL:      catalog.DefaultBaseURL,
			Endpoint:     catalog.DefaultEndpoint,
			UserAgent:    DefaultUserAgent,
			PageSize:     selection.DefaultPageSize,
			Timeout:      catalog.DefaultTimeout,
			MaxWalkPages: 1000,

			WalkPageTimeout: time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:    retry.MaxAttempts,
			InitialBackoff: retry.InitialBackoff,
			MaxBackoff:     retry.MaxBackoff,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		},
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty), and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := cfg.mergeYAML(data); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeYAML decodes data over cfg. Keys absent from data keep their current
// values; unknown keys are rejected.
func (c *Config) mergeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Catalog.BaseURL = v
	}
	if v, ok := lookup(EnvUserAgent); ok && v != "" {
		c.Catalog.UserAgent = v
	}
	if v, ok := lookup(EnvPageSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPageSize, err)
		}
		c.Catalog.PageSize = n
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.Redis.URL = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		c.Server.Port = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for values the components would reject.
func (c *Config) Validate() error {
	var errs []error

	if c.Catalog.UserAgent == "" {
		errs = append(errs, errors.New("catalog.user_agent is required"))
	}
	if u, err := url.Parse(c.Catalog.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("catalog.base_url must be an absolute URL (got %q)", c.Catalog.BaseURL))
	}
	if c.Catalog.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("catalog.page_size must be positive (got %d)", c.Catalog.PageSize))
	}
	if c.Catalog.MaxWalkPages < 0 {
		errs = append(errs, fmt.Errorf("catalog.max_walk_pages must not be negative (got %d)", c.Catalog.MaxWalkPages))
	}
	if c.Catalog.WalkPageTimeout < 0 {
		errs = append(errs, fmt.Errorf("catalog.walk_page_timeout must not be negative (got %s)", c.Catalog.WalkPageTimeout))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1 (got %d)", c.Retry.MaxAttempts))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must not be negative (got %d)", c.RateLimit.Burst))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Redis.URL != "" {
		if _, err := c.RedisOptions(); err != nil {
			errs = append(errs, fmt.Errorf("redis.url: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RedisOptions returns client options for Redis.URL, accepting both
// redis:// URLs and bare host:port addresses.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if strings.HasPrefix(c.Redis.URL, "redis://") || strings.HasPrefix(c.Redis.URL, "rediss://") {
		return redis.ParseURL(c.Redis.URL)
	}
	if c.Redis.URL == "" {
		return nil, errors.New("empty address")
	}
	return &redis.Options{Addr: c.Redis.URL}, nil
}

// ClientConfig returns the catalog client configuration. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client) catalog.Config {
	cfg := catalog.DefaultConfig(c.Catalog.UserAgent)
	cfg.BaseURL = c.Catalog.BaseURL
	cfg.Endpoint = c.Catalog.Endpoint
	cfg.Timeout = c.Catalog.Timeout
	cfg.Redis = rdb
	cfg.CachePrefix = c.Redis.Prefix
	cfg.RateLimit.RequestsPerSecond = c.RateLimit.RequestsPerSecond
	cfg.RateLimit.Burst = c.RateLimit.Burst
	return cfg
}

// RetryConfig returns the retry decorator configuration.
func (c *Config) RetryConfig() catalog.RetryConfig {
	cfg := catalog.DefaultRetryConfig()
	cfg.MaxAttempts = c.Retry.MaxAttempts
	if c.Retry.InitialBackoff > 0 {
		cfg.InitialBackoff = c.Retry.InitialBackoff
	}
	if c.Retry.MaxBackoff > 0 {
		cfg.MaxBackoff = c.Retry.MaxBackoff
	}
	return cfg
}

// LoggerConfig returns the logger configuration writing to out.
func (c *Config) LoggerConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Logging.Level),
		Pretty: c.Logging.Pretty,
		Output: out,
	}
}
