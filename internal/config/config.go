package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration, read from TASKQUEST_* environment
// variables with sensible defaults.
type Config struct {
	Port          string
	DBPath        string
	LogLevel      string
	SweepInterval time.Duration
}

func Load() Config {
	return Config{
		Port:          getEnv("TASKQUEST_PORT", "8080"),
		DBPath:        getEnv("TASKQUEST_DB_PATH", "taskquest.db"),
		LogLevel:      getEnv("TASKQUEST_LOG_LEVEL", "info"),
		SweepInterval: getEnvDuration("TASKQUEST_SWEEP_INTERVAL", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
