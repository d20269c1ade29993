package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds engine configuration.
type Config struct {
	DatabasePath string

	CodeLength     int
	CodeMaxRetries int
	CodeBaseDelay  time.Duration
	CodeMaxDelay   time.Duration

	SyncInterval time.Duration
	OfflineMode  bool
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() *Config {
	return &Config{
		DatabasePath:   getEnv("DB_PATH", "./tribeboard.db"),
		CodeLength:     getEnvInt("CODE_LENGTH", 6),
		CodeMaxRetries: getEnvInt("CODE_MAX_RETRIES", 10),
		CodeBaseDelay:  getEnvDuration("CODE_BASE_DELAY", 100*time.Millisecond),
		CodeMaxDelay:   getEnvDuration("CODE_MAX_DELAY", 2*time.Second),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		OfflineMode:    getEnvBool("OFFLINE_MODE", false),
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
