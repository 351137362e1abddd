package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvBaseURL, EnvPageSize, EnvUserAgent, EnvRedisURL, EnvPort, EnvLogLevel} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.artic.edu", cfg.Catalog.BaseURL)
	assert.Equal(t, 12, cfg.Catalog.PageSize)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Catalog.WalkPageTimeout)
	assert.Empty(t, cfg.Redis.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
catalog:
  base_url: https://file.example
  page_size: 20
  timeout: 5s
server:
  port: "9000"
logging:
  level: debug
`)
	t.Setenv(EnvPageSize, "30")

	cfg, err := Load(path)
	require.NoError(t, err)

	// env beats file
	assert.Equal(t, 30, cfg.Catalog.PageSize)
	// file beats default
	assert.Equal(t, "https://file.example", cfg.Catalog.BaseURL)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	// untouched keys keep defaults
	assert.Equal(t, DefaultUserAgent, cfg.Catalog.UserAgent)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeFile(t, "# nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKey(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "catalog:\n  page_sise: 4\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "catalog:\n  page_size: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvBaseURL:   "http://localhost:9999",
		EnvUserAgent: "tests/1.0",
		EnvPageSize:  "8",
		EnvRedisURL:  "redis://localhost:6379/2",
		EnvPort:      "7070",
		EnvLogLevel:  "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.Catalog.BaseURL)
	assert.Equal(t, "tests/1.0", cfg.Catalog.UserAgent)
	assert.Equal(t, 8, cfg.Catalog.PageSize)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestApplyEnv_EmptyValuesKeepCurrent(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{EnvBaseURL: "", EnvPort: ""})))

	assert.Equal(t, Default().Catalog.BaseURL, cfg.Catalog.BaseURL)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestApplyEnv_BadPageSize(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{EnvPageSize: "twelve"}))
	assert.ErrorContains(t, err, EnvPageSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative base url", func(c *Config) { c.Catalog.BaseURL = "api.artic.edu" }, "base_url"},
		{"no user agent", func(c *Config) { c.Catalog.UserAgent = "" }, "user_agent"},
		{"negative page size", func(c *Config) { c.Catalog.PageSize = -1 }, "page_size"},
		{"negative walk page timeout", func(c *Config) { c.Catalog.WalkPageTimeout = -time.Second }, "walk_page_timeout"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad redis url", func(c *Config) { c.Redis.URL = "redis://:bad:port" }, "redis.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestRedisOptions(t *testing.T) {
	cfg := Default()

	cfg.Redis.URL = "localhost:6379"
	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	cfg.Redis.URL = "redis://cache:6380/3"
	opts, err = cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Catalog.BaseURL = "http://localhost:1234"
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.Redis.Prefix = "test"

	cc := cfg.ClientConfig(nil)
	assert.Equal(t, "http://localhost:1234", cc.BaseURL)
	assert.Equal(t, DefaultUserAgent, cc.UserAgent)
	assert.Nil(t, cc.Redis)
	assert.Equal(t, "test", cc.CachePrefix)
	assert.Zero(t, cc.RateLimit.RequestsPerSecond)
	assert.NotEmpty(t, cc.Fields)
}

func TestRetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Retry = RetryConfig{MaxAttempts: 5, InitialBackoff: 10 * time.Millisecond}

	rc := cfg.RetryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, 30*time.Second, rc.MaxBackoff)
}
