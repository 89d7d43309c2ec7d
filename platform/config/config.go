// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// SchedulerConfig provides settings for the asynq expiry scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetExpirySweepInterval() time.Duration
}

// NegotiationConfig provides settings for the authoritative negotiation service.
type NegotiationConfig interface {
	GetNegotiationTTL() time.Duration
	GetDefaultCurrency() string
}

// ClientConfig provides settings for the negotiation API client.
type ClientConfig interface {
	GetAPIBaseURL() string
	GetAPIToken() string
	GetAPITimeout() time.Duration
	GetAPIRatePerSecond() float64
	GetAPIBurst() int
	GetAPIPageSize() int
}

// SnapshotConfig provides settings for the redis warm cache used by the store.
type SnapshotConfig interface {
	GetRedisURL() string
	GetSnapshotTTL() time.Duration
	IsSnapshotEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string   `env:"APP_ENV" envDefault:"development"`
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL    string   `env:"DATABASE_URL"`
	Storage        string   `env:"NEGOTIATION_STORAGE" envDefault:"postgres"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	CORSAllowAll   bool     `env:"CORS_ALLOW_ALL" envDefault:"false"`
	CORSAllowCreds bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	RateLimitRPS   float64  `env:"HTTP_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int      `env:"HTTP_RATE_LIMIT_BURST" envDefault:"40"`

	JWTAccessSecret string `env:"JWT_ACCESS_SECRET"`

	RedisURL            string        `env:"REDIS_URL"`
	RedisTLSInsecure    bool          `env:"REDIS_TLS_INSECURE" envDefault:"false"`
	AsynqQueueName      string        `env:"ASYNQ_QUEUE" envDefault:"negotiations"`
	AsynqConcurrency    int           `env:"ASYNQ_CONCURRENCY" envDefault:"10"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1m"`

	NegotiationTTL  time.Duration `env:"NEGOTIATION_TTL" envDefault:"72h"`
	DefaultCurrency string        `env:"DEFAULT_CURRENCY" envDefault:"USD"`

	APIBaseURL       string        `env:"NEGOTIATION_API_URL" envDefault:"http://localhost:8080"`
	APIToken         string        `env:"NEGOTIATION_API_TOKEN"`
	APITimeout       time.Duration `env:"NEGOTIATION_API_TIMEOUT" envDefault:"10s"`
	APIRatePerSecond float64       `env:"NEGOTIATION_API_RPS" envDefault:"5"`
	APIBurst         int           `env:"NEGOTIATION_API_BURST" envDefault:"10"`
	APIPageSize      int           `env:"NEGOTIATION_API_PAGE_SIZE" envDefault:"50"`

	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                   { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool             { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string             { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int              { return c.AsynqConcurrency }
func (c *Config) GetExpirySweepInterval() time.Duration { return c.ExpirySweepInterval }

// NegotiationConfig implementation
func (c *Config) GetNegotiationTTL() time.Duration { return c.NegotiationTTL }
func (c *Config) GetDefaultCurrency() string       { return c.DefaultCurrency }

// ClientConfig implementation
func (c *Config) GetAPIBaseURL() string         { return c.APIBaseURL }
func (c *Config) GetAPIToken() string           { return c.APIToken }
func (c *Config) GetAPITimeout() time.Duration  { return c.APITimeout }
func (c *Config) GetAPIRatePerSecond() float64  { return c.APIRatePerSecond }
func (c *Config) GetAPIBurst() int              { return c.APIBurst }
func (c *Config) GetAPIPageSize() int           { return c.APIPageSize }
func (c *Config) GetSnapshotTTL() time.Duration { return c.SnapshotTTL }
func (c *Config) IsSnapshotEnabled() bool       { return c.RedisURL != "" }

// UsesMemoryStorage reports whether the service keeps negotiations in memory.
func (c *Config) UsesMemoryStorage() bool {
	return strings.EqualFold(c.Storage, "memory")
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	if containsWildcard(cfg.CORSOrigins) {
		cfg.CORSAllowAll = true
	}

	return &cfg, nil
}

// LoadServer loads and validates configuration for the negotiation service.
func LoadServer() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" && !cfg.UsesMemoryStorage() {
		return nil, fmt.Errorf("DATABASE_URL is required unless NEGOTIATION_STORAGE=memory")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.NegotiationTTL <= 0 {
		return nil, fmt.Errorf("NEGOTIATION_TTL must be positive")
	}

	return cfg, nil
}

// LoadClient loads and validates configuration for the negotiation API client.
func LoadClient() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("NEGOTIATION_API_URL is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("NEGOTIATION_API_TOKEN is required")
	}
	if cfg.APIPageSize < 1 {
		cfg.APIPageSize = 50
	}

	return cfg, nil
}

func trimAll(values []string) []string {
	results := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
