// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	Port      string
	StaticDir string

	BusCapacity  int
	SSEKeepalive time.Duration

	DBPath  string
	DBDebug bool

	// RedisAddr enables the ingest rate limiter when non-empty.
	RedisAddr         string
	RedisPassword     string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	ShutdownTimeout time.Duration
}

// Load reads the environment, applying defaults for unset variables.
// Set but unparsable values are an error.
func Load() (*Config, error) {
	var errs []error
	cfg := &Config{
		Port:              getEnv("PORT", "8000"),
		StaticDir:         getEnv("STATIC_DIR", "static"),
		BusCapacity:       getEnvInt("BUS_CAPACITY", 1024, &errs),
		SSEKeepalive:      getEnvDuration("SSE_KEEPALIVE", 15*time.Second, &errs),
		DBPath:            getEnv("DB_PATH", "chat.db"),
		DBDebug:           getEnvBool("DB_DEBUG", false, &errs),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 30, &errs),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 10*time.Second, &errs),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second, &errs),
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	if cfg.BusCapacity <= 0 {
		return nil, fmt.Errorf("BUS_CAPACITY must be positive, got %d", cfg.BusCapacity)
	}
	if cfg.RateLimitRequests <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}
	return cfg, nil
}

// RateLimitEnabled reports whether a Redis address was configured.
func (c *Config) RateLimitEnabled() bool {
	return c.RedisAddr != ""
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid int value for %s: %q", key, value))
		return defaultValue
	}
	return n
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid duration value for %s: %q", key, value))
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid bool value for %s: %q", key, value))
		return defaultValue
	}
	return b
}
