// Package config handles application configuration and paths.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration. Values come from the
// defaults, then config.json in the data directory, then the environment.
type Config struct {
	DataDir string `json:"-" env:"MCAUTH_DATA_DIR"`

	// Auth
	MSAClientID string `json:"msaClientID" env:"MCAUTH_CLIENT_ID"`

	// Transport
	HTTPTimeoutSeconds int `json:"httpTimeoutSeconds" env:"MCAUTH_HTTP_TIMEOUT"`
	HTTPRetries        int `json:"httpRetries" env:"MCAUTH_HTTP_RETRIES"`

	// Logging
	LogLevel string `json:"logLevel" env:"MCAUTH_LOG_LEVEL"`
}

const (
	DefaultMSAClientID = "c36a9fb6-4f2a-41ff-90bd-ae7cc92031eb"

	fileName = "config.json"
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:            defaultDataDir(),
		MSAClientID:        DefaultMSAClientID,
		HTTPTimeoutSeconds: 30,
		HTTPRetries:        3,
		LogLevel:           "info",
	}
}

// Load reads config from disk. dataDir, when set, wins over the default
// and MCAUTH_DATA_DIR.
func Load(dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	dir := cfg.DataDir

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	// The environment overrides the file.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DataDir = dir

	// Fallback to default ID if config file had empty string or missing field
	if cfg.MSAClientID == "" {
		cfg.MSAClientID = DefaultMSAClientID
	}
	if cfg.HTTPRetries < 0 {
		cfg.HTTPRetries = 0
	}
	return cfg, nil
}

// EnsureDirs creates the data directory.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(c.DataDir, 0700)
}

// HTTPTimeout returns the per-request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func defaultDataDir() string {
	// Check for portable mode first
	exe, _ := os.Executable()
	portablePath := filepath.Join(filepath.Dir(exe), "data")
	if _, err := os.Stat(portablePath); err == nil {
		return portablePath
	}

	// Use XDG/platform-specific directories
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcauth")
	}

	home, _ := os.UserHomeDir()
	switch {
	case os.Getenv("APPDATA") != "": // Windows
		return filepath.Join(os.Getenv("APPDATA"), "mcauth")
	default: // Linux/macOS
		return filepath.Join(home, ".local", "share", "mcauth")
	}
}
