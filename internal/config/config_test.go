package config

import (
	"os"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "FRONTEND_URL", "STORE_DRIVER", "DB_PATH", "DATABASE_URL", "CORS_ORIGINS", "RECENT_LIMIT_MAX", "FEED_BUFFER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverSQLite)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
	if cfg.Port != "8080" || cfg.DBPath != "./data/journeys.db" || cfg.RecentLimitMax != 100 || cfg.FeedBuffer != 16 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.IsDevelopment() {
		t.Error("Expected development mode with empty FRONTEND_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("CORS_ORIGINS", "https://cosmic.example, https://admin.example ,")
	t.Setenv("FRONTEND_URL", "https://cosmic.example")
	t.Setenv("RECENT_LIMIT_MAX", "25")
	t.Setenv("FEED_BUFFER", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
	want := []string{"https://cosmic.example", "https://admin.example"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.RecentLimitMax != 25 {
		t.Errorf("RecentLimitMax = %d, want 25", cfg.RecentLimitMax)
	}
	if cfg.FeedBuffer != 16 {
		t.Errorf("FeedBuffer = %d, want fallback 16", cfg.FeedBuffer)
	}
	if cfg.IsDevelopment() {
		t.Error("Expected production mode for a public FRONTEND_URL")
	}
}

func TestValidate(t *testing.T) {
	base := Config{Port: "8080", StoreDriver: DriverSQLite, DBPath: "x.db", RecentLimitMax: 10, FeedBuffer: 1}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }, true},
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) { c.StoreDriver = DriverPostgres; c.DatabaseURL = "postgres://x" }, false},
		{"memory needs nothing", func(c *Config) { c.StoreDriver = DriverMemory; c.DBPath = "" }, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "redis" }, true},
		{"zero limit", func(c *Config) { c.RecentLimitMax = 0 }, true},
		{"zero feed buffer", func(c *Config) { c.FeedBuffer = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
