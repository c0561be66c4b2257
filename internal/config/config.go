// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables and the value is
// treated as read-only once Load returns.
type Config struct {
	// Application settings
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppPort    int    `env:"APP_PORT" envDefault:"3000"`
	AppVersion string `env:"APP_VERSION" envDefault:"1.0.0"`

	// Record store (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	UsersTable  string `env:"USERS_TABLE" envDefault:"test_users"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Account keys and quota
	KeyPrefix   string `env:"KEY_PREFIX" envDefault:"TEST"`
	MaxAPICalls int    `env:"MAX_API_CALLS" envDefault:"30"`

	// Admin secret. ADMIN_KEY_HASH takes precedence when both are set.
	AdminKey     string `env:"ADMIN_KEY"`
	AdminKeyHash string `env:"ADMIN_KEY_HASH"`

	// Access control for /api routes
	AllowedDomain string `env:"ALLOWED_DOMAIN"`
	AllowedIPs    string `env:"ALLOWED_IPS"`

	// Comma-separated list of allowed origins, "*" allows any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Inference backend
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL  string        `env:"GEMINI_BASE_URL"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"60s"`
	LedgerTimeout  time.Duration `env:"LEDGER_TIMEOUT" envDefault:"5s"`

	// Circuit breaker around backend calls
	BreakerMaxRequests uint32        `env:"BREAKER_MAX_REQUESTS" envDefault:"5"`
	BreakerInterval    time.Duration `env:"BREAKER_INTERVAL" envDefault:"1m"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`

	// Uploads
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"20971520"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout must cover BackendTimeout for both backend calls.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"150s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitEnabled  bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitIPRPS    int  `env:"RATE_LIMIT_IP_RPS" envDefault:"10"`
	RateLimitIPBurst  int  `env:"RATE_LIMIT_IP_BURST" envDefault:"20"`
	RateLimitKeyRPM   int  `env:"RATE_LIMIT_KEY_RPM" envDefault:"30"`
	RateLimitKeyBurst int  `env:"RATE_LIMIT_KEY_BURST" envDefault:"5"`

	// Request body size limit in bytes for JSON endpoints (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetAllowedIPs parses the comma-separated IP allow-list.
func (c *Config) GetAllowedIPs() []string {
	return splitList(c.AllowedIPs)
}

// Validate checks invariants env tags cannot express.
func (c *Config) Validate() error {
	if c.MaxAPICalls <= 0 {
		return fmt.Errorf("MAX_API_CALLS must be positive, got %d", c.MaxAPICalls)
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return fmt.Errorf("KEY_PREFIX must not be empty")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
