package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/circuitbreaker"
	"github.com/aman-churiwal/rate-limiter/internal/healthcheck"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/aman-churiwal/rate-limiter/internal/service"
	"github.com/aman-churiwal/rate-limiter/internal/storage"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "RATELIMITER"

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	Server         ServerConfig                 `mapstructure:"server"`
	Storage        StorageConfig                `mapstructure:"storage"`
	Redis          storage.RedisConfig          `mapstructure:"redis"`
	Postgres       storage.PostgresConfig       `mapstructure:"postgres"`
	Auth           service.AuthConfig           `mapstructure:"auth"`
	RateLimit      ratelimit.Config             `mapstructure:"rate_limit"`
	CircuitBreaker circuitbreaker.Config        `mapstructure:"circuit_breaker"`
	HealthCheck    healthcheck.Config           `mapstructure:"health_check"`
	DecisionLog    service.DecisionLoggerConfig `mapstructure:"decision_log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	LogLevel        string        `mapstructure:"log_level"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Type          string        `mapstructure:"type"`
	// How often the memory backend evicts expired keys.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Load reads path (JSON, YAML or TOML by extension) and applies
// RATELIMITER_* environment overrides, e.g. RATELIMITER_RATE_LIMIT_MAX_REQUESTS.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("auth.jwt_secret", envPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("postgres.dsn", envPrefix+"_POSTGRES_DSN", "DATABASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, errors.WithMessagef(err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WithMessage(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.log_level", "")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.type", StorageRedis)
	v.SetDefault("storage.sweep_interval", time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.operation_timeout", 100*time.Millisecond)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 100)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.slow_threshold", 200*time.Millisecond)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiry", 24*time.Hour)
	v.SetDefault("auth.issuer", "rate-limiter")

	v.SetDefault("rate_limit.type", string(ratelimit.IdentityIP))
	v.SetDefault("rate_limit.algorithm", string(ratelimit.AlgorithmFixedWindow))
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window_size_in_seconds", 60)
	v.SetDefault("rate_limit.key_prefix", "")

	v.SetDefault("circuit_breaker.max_failures", 5)
	v.SetDefault("circuit_breaker.open_timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.half_open_successes", 1)

	v.SetDefault("health_check.interval", 10*time.Second)
	v.SetDefault("health_check.timeout", 2*time.Second)
	v.SetDefault("health_check.max_failures", 3)

	v.SetDefault("decision_log.enabled", false)
	v.SetDefault("decision_log.buffer_size", 1000)
	v.SetDefault("decision_log.batch_size", 100)
	v.SetDefault("decision_log.flush_interval", 5*time.Second)
	v.SetDefault("decision_log.retention_days", 30)
	v.SetDefault("decision_log.cleanup_interval", time.Hour)
}

// Validate rejects configurations the process cannot start with. The
// limiter settings themselves are checked again when the limiter is built.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}

	switch c.Storage.Type {
	case StorageRedis:
		if c.Redis.Host == "" || c.Redis.Port <= 0 {
			return errors.New("redis.host and redis.port are required for redis storage")
		}
	case StorageMemory:
	default:
		return errors.Errorf("storage.type must be %q or %q, got %q", StorageRedis, StorageMemory, c.Storage.Type)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return errors.WithMessage(err, "rate_limit")
	}

	if c.DecisionLog.Enabled && c.Postgres.DSN == "" {
		return errors.New("decision_log.enabled requires postgres.dsn")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
