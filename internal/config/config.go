package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dyike/vsdocs/internal/library"
)

// BackendConfig says where the vector store service lives
type BackendConfig struct {
	BaseURL       string `json:"base_url"`
	Token         string `json:"token,omitempty"`
	TimeoutSecs   int    `json:"timeout_secs"`
	RetryAttempts int    `json:"retry_attempts"`
}

// LogConfig holds logging settings. The TUI owns the terminal, so logs go to a file.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// TUIConfig holds TUI-specific settings
type TUIConfig struct {
	ListHeight int  `json:"list_height"`
	ShowHidden bool `json:"show_hidden"`
}

// CollectionSeed is a collection the dev backend creates at startup
type CollectionSeed struct {
	library.CollectionConfig
	Documents []string `json:"documents,omitempty"`
}

// ServerConfig holds settings for the local dev backend
type ServerConfig struct {
	Addr        string           `json:"addr"`
	Root        string           `json:"root"`
	MetaFile    string           `json:"meta_file,omitempty"`
	Token       string           `json:"token,omitempty"`
	JobStepMS   int              `json:"job_step_ms"`
	Collections []CollectionSeed `json:"collections,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Backend           BackendConfig `json:"backend"`
	DatabasePath      string        `json:"database_path"`
	DefaultCollection string        `json:"default_collection,omitempty"`
	PollIntervalMS    int           `json:"poll_interval_ms"`
	CrawlConcurrency  int           `json:"crawl_concurrency"`
	Log               LogConfig     `json:"log"`
	TUI               TUIConfig     `json:"tui"`
	Server            ServerConfig  `json:"server"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:       "http://127.0.0.1:8088",
			TimeoutSecs:   30,
			RetryAttempts: 3,
		},
		DatabasePath:     "~/.vsdocs/vsdocs.db",
		PollIntervalMS:   1000,
		CrawlConcurrency: 4,
		Log: LogConfig{
			File:       "~/.vsdocs/vsdocs.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		TUI: TUIConfig{
			ListHeight: 20,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8088",
			Root:      ".",
			JobStepMS: 50,
			Collections: []CollectionSeed{{
				CollectionConfig: library.CollectionConfig{
					ID:                     "default",
					Name:                   "Default",
					SecurityClassification: "Confidential",
					EmbeddingModel:         "text-embedding-3-small",
					ChunkSize:              1000,
					ChunkOverlap:           200,
				},
			}},
		},
	}
}

// ConfigDir returns the configuration directory path. VSDOCS_HOME overrides it.
func ConfigDir() (string, error) {
	if dir := os.Getenv("VSDOCS_HOME"); dir != "" {
		return ExpandPath(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vsdocs"), nil
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) (string, error) {
	if len(path) == 0 {
		return path, nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Load reads .env from the working directory if present, then the default
// config file, then VSDOCS_* overrides.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFrom loads configuration from path, creating it with defaults if it
// does not exist. Fields missing from the file keep their defaults.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveTo(configPath, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	seeds := cfg.Server.Collections
	// json reuses existing slice elements; decode seeds into a fresh slice
	cfg.Server.Collections = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	if cfg.Server.Collections == nil {
		cfg.Server.Collections = seeds
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes configuration to path
func SaveTo(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// may hold a token
	return os.WriteFile(configPath, data, 0600)
}

// ApplyEnv overrides file values with VSDOCS_* environment variables
func (c *Config) ApplyEnv() error {
	str := map[string]*string{
		"VSDOCS_BASE_URL":           &c.Backend.BaseURL,
		"VSDOCS_TOKEN":              &c.Backend.Token,
		"VSDOCS_DATABASE_PATH":      &c.DatabasePath,
		"VSDOCS_DEFAULT_COLLECTION": &c.DefaultCollection,
		"VSDOCS_LOG_FILE":           &c.Log.File,
		"VSDOCS_LOG_LEVEL":          &c.Log.Level,
		"VSDOCS_SERVER_ADDR":        &c.Server.Addr,
		"VSDOCS_SERVER_ROOT":        &c.Server.Root,
		"VSDOCS_SERVER_META_FILE":   &c.Server.MetaFile,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"VSDOCS_TIMEOUT_SECS":      &c.Backend.TimeoutSecs,
		"VSDOCS_RETRY_ATTEMPTS":    &c.Backend.RetryAttempts,
		"VSDOCS_POLL_INTERVAL_MS":  &c.PollIntervalMS,
		"VSDOCS_CRAWL_CONCURRENCY": &c.CrawlConcurrency,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate rejects settings the rest of the program cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.TimeoutSecs <= 0 {
		return fmt.Errorf("backend.timeout_secs must be positive")
	}
	if c.Backend.RetryAttempts < 1 {
		return fmt.Errorf("backend.retry_attempts must be at least 1")
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive")
	}
	if c.CrawlConcurrency <= 0 {
		return fmt.Errorf("crawl_concurrency must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// GetDatabasePath returns the expanded database path
func (c *Config) GetDatabasePath() (string, error) {
	return ExpandPath(c.DatabasePath)
}

// Timeout returns the backend request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// PollInterval returns the delay between job status polls
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// JobStep returns the dev backend's per-document delay
func (c *Config) JobStep() time.Duration {
	return time.Duration(c.Server.JobStepMS) * time.Millisecond
}
