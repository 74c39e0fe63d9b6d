package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"einvoicing/internal/logger"
	"einvoicing/internal/money"
)

type Config struct {
	// Database
	DatabaseURL   string
	DBLockTimeout time.Duration

	// HTTP server
	ServerPort     string
	AllowedOrigins string

	// Invoicing
	RoundingMode    money.RoundingMode
	ReferencePrefix string

	// Metrics
	MetricsEnabled bool

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	rounding, err := money.ParseRoundingMode(getEnv("ROUNDING_MODE", "half_up"))
	if err != nil {
		return nil, fmt.Errorf("ROUNDING_MODE: %w", err)
	}
	lockTimeout, err := time.ParseDuration(getEnv("DB_LOCK_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("DB_LOCK_TIMEOUT: %w", err)
	}
	metrics, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("METRICS_ENABLED: %w", err)
	}

	config := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DBLockTimeout:   lockTimeout,
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", ""),
		RoundingMode:    rounding,
		ReferencePrefix: getEnv("REFERENCE_PREFIX", "CUFE"),
		MetricsEnabled:  metrics,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:   getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:       getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("SERVER_PORT must be numeric, got %q", c.ServerPort)
	}
	if c.DBLockTimeout < 0 {
		return fmt.Errorf("DB_LOCK_TIMEOUT must not be negative")
	}
	if strings.ContainsAny(c.ReferencePrefix, " \t\n") {
		return fmt.Errorf("REFERENCE_PREFIX must not contain whitespace")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// RequireDatabase fails when no DATABASE_URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
