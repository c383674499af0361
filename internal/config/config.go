// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Backing stores. Empty URLs select the in-memory implementations.
	DatabaseURL string
	RedisURL    string

	// Security
	JWTSecret    string
	JWTIssuer    string
	AdminSecret  string
	RateLimitRPM int
	CORSOrigins  []string

	// Alert session gate
	SessionTTL     time.Duration
	JanitorEvery   time.Duration
	AnalyzeTimeout time.Duration

	// Observability
	OTLPEndpoint    string
	OTelServiceName string
	OTelSampleRatio float64
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultRateLimitRPM   = 120
	DefaultSessionTTL     = 24 * time.Hour
	DefaultJanitorEvery   = 10 * time.Minute
	DefaultAnalyzeTimeout = 5 * time.Second
	DefaultSampleRatio    = 1.0

	minJWTSecretLen = 32
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:       getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		AdminSecret:     os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:    getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),
		SessionTTL:      getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		JanitorEvery:    getEnvDuration("SESSION_JANITOR_INTERVAL", DefaultJanitorEvery),
		AnalyzeTimeout:  getEnvDuration("ANALYZE_TIMEOUT", DefaultAnalyzeTimeout),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "moodguard"),
		OTelSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", DefaultSampleRatio),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	if c.IsProduction() {
		if c.AdminSecret == "" {
			errs = append(errs, fmt.Errorf("ADMIN_SECRET is required in production"))
		}
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required in production"))
		}
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive"))
	}
	if c.AnalyzeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ANALYZE_TIMEOUT must be positive"))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json"))
	}
	return errors.Join(errs...)
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
