// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Business-model API
	APIURL        string // Base URL of the business-model API, e.g. "http://localhost:8080"
	APIKey        string
	HTTPTimeout   time.Duration
	RetryAttempts int

	// Tenant scope
	TenantID    string
	UserID      string
	Environment string // "live" or "test"

	// Cache
	ListTTL   time.Duration
	DetailTTL time.Duration
	RedisURL  string // Optional, uses in-memory cache if not set

	// Push channel for environment_changed events (optional)
	EventsURL string

	// Dev server
	Port     string
	Env      string // "development", "staging", "production"
	Spelling string // response spelling of the dev API: "snake", "camel" or "mixed"

	// Observability
	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
}

const (
	DefaultAPIURL        = "http://localhost:8080"
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultSpelling      = "snake"
	DefaultEnvironment   = "test"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultListTTL       = 5 * time.Minute
	DefaultDetailTTL     = 10 * time.Minute
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultRetryAttempts = 3
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:        getEnv("BM_API_URL", DefaultAPIURL),
		APIKey:        os.Getenv("BM_API_KEY"),
		HTTPTimeout:   getEnvDuration("BM_HTTP_TIMEOUT", DefaultHTTPTimeout),
		RetryAttempts: int(getEnvInt64("BM_RETRY_ATTEMPTS", DefaultRetryAttempts)),
		TenantID:      os.Getenv("BM_TENANT_ID"),
		UserID:        os.Getenv("BM_USER_ID"),
		Environment:   getEnv("BM_ENVIRONMENT", DefaultEnvironment),
		ListTTL:       getEnvDuration("BM_LIST_TTL", DefaultListTTL),
		DetailTTL:     getEnvDuration("BM_DETAIL_TTL", DefaultDetailTTL),
		RedisURL:      os.Getenv("REDIS_URL"),
		EventsURL:     os.Getenv("BM_EVENTS_URL"),
		Port:          getEnv("PORT", DefaultPort),
		Env:           getEnv("ENV", DefaultEnv),
		Spelling:      getEnv("BM_RESPONSE_SPELLING", DefaultSpelling),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:     getEnv("LOG_FORMAT", DefaultLogFormat),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BM_API_URL must be an absolute URL, got %q", c.APIURL)
	}

	if c.Environment != "live" && c.Environment != "test" {
		return fmt.Errorf("BM_ENVIRONMENT must be \"live\" or \"test\", got %q", c.Environment)
	}

	if c.ListTTL <= 0 || c.DetailTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("BM_RETRY_ATTEMPTS must be at least 1")
	}

	return nil
}

// IsLive reports whether the configured environment is live (as opposed to test)
func (c *Config) IsLive() bool {
	return c.Environment == "live"
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
