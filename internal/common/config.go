// Package common provides shared utilities for closetd
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for closetd
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	API         APIConfig     `toml:"api"`
	Auth        AuthConfig    `toml:"auth"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds the local HTTP API configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds paths for the two device storage tiers and the
// sealing key file for the secure tier.
type StorageConfig struct {
	Path    string `toml:"path"`     // base data directory
	KeyFile string `toml:"key_file"` // 32-byte sealing key, created on first run
}

// SecurePath returns the directory for the encrypted store.
func (c *StorageConfig) SecurePath() string {
	return filepath.Join(c.Path, "secure")
}

// LocalPath returns the directory for the plaintext store.
func (c *StorageConfig) LocalPath() string {
	return filepath.Join(c.Path, "local")
}

// APIConfig holds the remote Closet backend client configuration.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	Timeout        string `toml:"timeout"`         // per-request HTTP timeout
	RefreshTimeout string `toml:"refresh_timeout"` // bound on the restore refresh race
	RateLimit      int    `toml:"rate_limit"`      // outbound requests per second
}

// GetTimeout parses and returns the HTTP timeout duration
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRefreshTimeout parses and returns the refresh race bound.
func (c *APIConfig) GetRefreshTimeout() time.Duration {
	d, err := time.ParseDuration(c.RefreshTimeout)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

// AuthConfig holds session trust and abuse-limiting configuration.
// The windows are designed values; overriding them is for tests, not tuning.
type AuthConfig struct {
	TrustWindow        string `toml:"trust_window"`         // offline trust window, default "168h"
	ResetRequestWindow string `toml:"reset_request_window"` // default "1h"
	ResetRequestMax    int    `toml:"reset_request_max"`    // default 3
	ResetAttemptWindow string `toml:"reset_attempt_window"` // default "15m"
	ResetAttemptMax    int    `toml:"reset_attempt_max"`    // default 5
}

// GetTrustWindow parses and returns the offline trust window.
func (c *AuthConfig) GetTrustWindow() time.Duration {
	d, err := time.ParseDuration(c.TrustWindow)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetResetRequestWindow parses and returns the reset-request window.
func (c *AuthConfig) GetResetRequestWindow() time.Duration {
	d, err := time.ParseDuration(c.ResetRequestWindow)
	if err != nil {
		return time.Hour
	}
	return d
}

// GetResetAttemptWindow parses and returns the reset-attempt window.
func (c *AuthConfig) GetResetAttemptWindow() time.Duration {
	d, err := time.ParseDuration(c.ResetAttemptWindow)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7381,
		},
		Storage: StorageConfig{
			Path:    "data",
			KeyFile: "data/closetd.key",
		},
		API: APIConfig{
			BaseURL:        "https://api.closetapp.io",
			Timeout:        "30s",
			RefreshTimeout: "8s",
			RateLimit:      10,
		},
		Auth: AuthConfig{
			TrustWindow:        "168h",
			ResetRequestWindow: "1h",
			ResetRequestMax:    3,
			ResetAttemptWindow: "15m",
			ResetAttemptMax:    5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CLOSETD_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("CLOSETD_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("CLOSETD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if path := os.Getenv("CLOSETD_DATA_PATH"); path != "" {
		config.Storage.Path = path
		config.Storage.KeyFile = filepath.Join(path, "closetd.key")
	}

	if kf := os.Getenv("CLOSETD_KEY_FILE"); kf != "" {
		config.Storage.KeyFile = kf
	}

	if url := os.Getenv("CLOSETD_API_URL"); url != "" {
		config.API.BaseURL = url
	}

	if level := os.Getenv("CLOSETD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
