// Package env provides utilities for working with environment variables.
package env

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Get returns the value of the environment variable or the default if not set.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetInt64 parses the variable as a base-10 integer, falling back to the
// default when unset or invalid.
func GetInt64(key string, defaultValue int64) int64 {
	n, err := strconv.ParseInt(Get(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetDuration parses the variable with time.ParseDuration, falling back to
// the default when unset or invalid.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(Get(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

// ParseLogLevel maps LOG_LEVEL onto a slog.Level, accepting "warning" for
// warn. Empty or unknown values give fallback.
func ParseLogLevel(fallback slog.Level) slog.Level {
	levels := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	if level, ok := levels[strings.ToLower(Get("LOG_LEVEL", ""))]; ok {
		return level
	}
	return fallback
}
