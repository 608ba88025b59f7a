package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Backend.BaseURL == "" || cfg.PollIntervalMS != 1000 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be written: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestLoadFromKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"backend":{"base_url":"https://vs.example.com"},"default_collection":"policies"}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Backend.BaseURL != "https://vs.example.com" || cfg.DefaultCollection != "policies" {
		t.Errorf("expected file values, got %+v", cfg.Backend)
	}
	if cfg.Backend.TimeoutSecs != 30 || cfg.CrawlConcurrency != 4 {
		t.Errorf("expected defaults to survive, got timeout=%d concurrency=%d", cfg.Backend.TimeoutSecs, cfg.CrawlConcurrency)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("VSDOCS_BASE_URL", "http://env:9000")
	t.Setenv("VSDOCS_TOKEN", "abc")
	t.Setenv("VSDOCS_POLL_INTERVAL_MS", "250")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env:9000" || cfg.Backend.Token != "abc" {
		t.Errorf("expected env overrides, got %+v", cfg.Backend)
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.PollInterval())
	}

	t.Setenv("VSDOCS_CRAWL_CONCURRENCY", "many")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for a non-numeric value")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no base url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"zero poll", func(c *Config) { c.PollIntervalMS = 0 }},
		{"zero concurrency", func(c *Config) { c.CrawlConcurrency = 0 }},
		{"no retries", func(c *Config) { c.Backend.RetryAttempts = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadUsesHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VSDOCS_HOME", dir)
	t.Setenv("VSDOCS_DEFAULT_COLLECTION", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultCollection != "from-env" {
		t.Errorf("expected env collection, got %q", cfg.DefaultCollection)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("expected config under VSDOCS_HOME: %v", err)
	}
}
