// Package config loads taskmirror settings from a YAML config file and
// TASKMIRROR_* environment variables, with env vars taking precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for a sync run.
type Config struct {
	// API connection.
	Token    string
	BaseURL  string
	SourceID string

	// DataDir holds the SQLite database, cursor file, property cache,
	// and scan manifest.
	DataDir string

	// Listing page size.
	PageSize int

	// Pacing intervals. RecordInterval applies after each hydrated
	// record, PageInterval between listing pages.
	RecordInterval time.Duration
	PageInterval   time.Duration

	// Retry policy for transient listing errors.
	RetryDelay time.Duration
	MaxRetries int

	// Daemon mode.
	DaemonInterval time.Duration
	LogFile        string
}

// Load reads configuration. If configFile is non-empty it is used
// directly; otherwise ./taskmirror.yaml and the user config directory
// (~/.config/taskmirror/config.yaml) are searched. A missing config file
// is fine - environment variables and defaults still apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
	}

	// Environment variables take precedence over the config file,
	// e.g. TASKMIRROR_API_TOKEN maps to api.token.
	v.SetEnvPrefix("TASKMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", "https://api.example.com")
	v.SetDefault("sync.page_size", 20)
	v.SetDefault("sync.record_interval", "350ms")
	v.SetDefault("sync.page_interval", "350ms")
	v.SetDefault("sync.retry_delay", "2s")
	v.SetDefault("sync.max_retries", 5)
	v.SetDefault("daemon.interval", "15m")
	v.SetDefault("data_dir", defaultDataDir())

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Token:          v.GetString("api.token"),
		BaseURL:        v.GetString("api.base_url"),
		SourceID:       v.GetString("api.source_id"),
		DataDir:        v.GetString("data_dir"),
		PageSize:       v.GetInt("sync.page_size"),
		RecordInterval: v.GetDuration("sync.record_interval"),
		PageInterval:   v.GetDuration("sync.page_interval"),
		RetryDelay:     v.GetDuration("sync.retry_delay"),
		MaxRetries:     v.GetInt("sync.max_retries"),
		DaemonInterval: v.GetDuration("daemon.interval"),
		LogFile:        v.GetString("daemon.log_file"),
	}

	return cfg, nil
}

// Validate checks the settings a sync run cannot proceed without.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("api.token is required (or set TASKMIRROR_API_TOKEN)")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.SourceID == "" {
		return fmt.Errorf("api.source_id is required (or set TASKMIRROR_API_SOURCE_ID)")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive, got %d", c.PageSize)
	}
	return nil
}

// Paths inside the data directory.

func (c *Config) DBPath() string        { return filepath.Join(c.DataDir, "taskmirror.db") }
func (c *Config) CursorPath() string    { return filepath.Join(c.DataDir, "cursor") }
func (c *Config) PropCachePath() string { return filepath.Join(c.DataDir, "property-cache.json") }
func (c *Config) ManifestPath() string  { return filepath.Join(c.DataDir, "scan-manifest.jsonl") }

// findConfigFile searches the standard locations for a config file.
// Precedence: ./taskmirror.yaml, then ~/.config/taskmirror/config.yaml.
func findConfigFile() string {
	if _, err := os.Stat("taskmirror.yaml"); err == nil {
		return "taskmirror.yaml"
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(configDir, "taskmirror", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskmirror"
	}
	return filepath.Join(home, ".taskmirror")
}
