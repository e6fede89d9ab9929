package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, time.Hour, cfg.DecisionLog.CleanupInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.GetRedisAddr())
	assert.Equal(t, 100*time.Millisecond, cfg.Redis.OperationTimeout)
	assert.Equal(t, ratelimit.IdentityIP, cfg.RateLimit.Type)
	assert.Equal(t, ratelimit.AlgorithmFixedWindow, cfg.RateLimit.Algorithm)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 60, cfg.RateLimit.WindowSizeInSeconds)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.OpenTimeout)
	assert.False(t, cfg.DecisionLog.Enabled)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": "9090", "environment": "production"},
		"storage": {"type": "memory"},
		"rate_limit": {
			"type": "client_id",
			"algorithm": "sliding_window",
			"max_requests": 3,
			"window_size_in_seconds": 60,
			"key_prefix": "api",
			"token_bucket": {"refill_rate": 1, "capacity": 10}
		},
		"circuit_breaker": {"open_timeout": "10s"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, ratelimit.Config{
		Type:                ratelimit.IdentityClientID,
		Algorithm:           ratelimit.AlgorithmSlidingWindow,
		MaxRequests:         3,
		WindowSizeInSeconds: 60,
		KeyPrefix:           "api",
		TokenBucket:         &ratelimit.TokenBucketConfig{RefillRate: 1, Capacity: 10},
	}, cfg.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.CircuitBreaker.OpenTimeout)
	assert.Equal(t, 5, cfg.CircuitBreaker.MaxFailures)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"rate_limit": {"max_requests": 3}}`)
	t.Setenv("RATELIMITER_RATE_LIMIT_MAX_REQUESTS", "50")
	t.Setenv("RATELIMITER_REDIS_HOST", "redis.internal")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.JWTSecret)
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, `{"server": `)

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty port", mutate: func(c *Config) { c.Server.Port = "" }},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "etcd" }},
		{name: "redis without host", mutate: func(c *Config) { c.Redis.Host = "" }},
		{name: "zero max requests", mutate: func(c *Config) { c.RateLimit.MaxRequests = 0 }},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.WindowSizeInSeconds = 0 }},
		{name: "decision log without postgres", mutate: func(c *Config) { c.DecisionLog.Enabled = true }},
		{name: "short jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "secret" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateLeavesAlgorithmChecksToLimiter(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	// Unknown algorithms surface as a construction error from the limiter.
	cfg.RateLimit.Algorithm = ratelimit.AlgorithmTokenBucket
	require.NoError(t, cfg.Validate())
}
