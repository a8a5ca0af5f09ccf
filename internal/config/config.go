// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	StoreDriver    string
	DBPath         string
	DatabaseURL    string // postgres only
	CORSOrigins    []string
	RecentLimitMax int // upper bound for ?limit= on the journey listing
	FeedBuffer     int // queued events per admin feed client
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		DBPath:         getEnv("DB_PATH", "./data/journeys.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		RecentLimitMax: getEnvInt("RECENT_LIMIT_MAX", 100),
		FeedBuffer:     getEnvInt("FEED_BUFFER", 16),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of %s, %s, %s", DriverMemory, DriverSQLite, DriverPostgres)
	}
	if c.RecentLimitMax <= 0 {
		return fmt.Errorf("RECENT_LIMIT_MAX must be > 0")
	}
	if c.FeedBuffer <= 0 {
		return fmt.Errorf("FEED_BUFFER must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
