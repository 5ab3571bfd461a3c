// Package config provides environment-based configuration for the
// wikigraph binaries.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds settings shared by the CLI, TUI and MCP binaries.
// Command-line flags override these values where a flag exists.
type Config struct {
	Lang      string
	Workers   int
	NodeCap   int
	CacheDir  string
	UserAgent string
	Timeout   time.Duration
	LogFormat string
	LogLevel  string
}

// NewConfig loads configuration from environment variables.
// Environment variables are prefixed with WIKIGRAPH_. Every field has a
// usable default, so loading never fails.
func NewConfig() *Config {
	return &Config{
		Lang:      getEnv("WIKIGRAPH_LANG", "en"),
		Workers:   getEnvAsInt("WIKIGRAPH_WORKERS", 5),
		NodeCap:   getEnvAsInt("WIKIGRAPH_NODE_CAP", 100),
		CacheDir:  getEnv("WIKIGRAPH_CACHE_DIR", ""),
		UserAgent: getEnv("WIKIGRAPH_USER_AGENT", ""),
		Timeout:   getEnvAsDuration("WIKIGRAPH_TIMEOUT", 15*time.Second),
		LogFormat: getEnv("WIKIGRAPH_LOG_FORMAT", "text"),
		LogLevel:  getEnv("WIKIGRAPH_LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
