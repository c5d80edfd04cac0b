// Package config loads shell configuration from a YAML file with
// environment-variable expansion, falling back to defaults when no file
// exists.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the shell configuration.
type Config struct {
	DataDir string `yaml:"data_dir"` // ~/.veranda

	Server struct {
		Addr      string `yaml:"addr"`
		WebDir    string `yaml:"web_dir"`    // web bundle served to the webview
		DevReload bool   `yaml:"dev_reload"` // push reload notifications on asset changes
	} `yaml:"server"`

	API struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
	} `yaml:"api"`

	Bridge struct {
		CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
		PendingTTLSeconds  int `yaml:"pending_ttl_seconds"`
	} `yaml:"bridge"`

	Tokens struct {
		// Backend selects the credential store: keyring, sqlite, memory.
		// Empty means keyring when available, sqlite otherwise.
		Backend string `yaml:"backend"`
	} `yaml:"tokens"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	cfg := &Config{DataDir: DefaultDataDir()}
	cfg.Server.Addr = "127.0.0.1:27610"
	cfg.Server.WebDir = "web/dist"
	cfg.API.BaseURL = "https://api.veranda.shop/v1"
	cfg.API.TimeoutSeconds = 15
	cfg.API.MaxRetries = 3
	cfg.Bridge.CallTimeoutSeconds = 30
	cfg.Bridge.PendingTTLSeconds = 120
	return cfg
}

// DefaultDataDir returns the default data directory (~/.veranda).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veranda"
	}
	return filepath.Join(home, ".veranda")
}

// Load reads <data_dir>/config.yaml, or returns defaults when it is absent.
func Load() (*Config, error) {
	cfg := Default()
	return cfg.merge(filepath.Join(cfg.DataDir, "config.yaml"), true)
}

// LoadFrom reads a specific config file.
func LoadFrom(path string) (*Config, error) {
	return Default().merge(path, false)
}

func (c *Config) merge(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// APITimeout returns the API client deadline.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// BridgeCallTimeout returns the mandatory per-call bridge deadline.
func (c *Config) BridgeCallTimeout() time.Duration {
	return time.Duration(c.Bridge.CallTimeoutSeconds) * time.Second
}

// BridgePendingTTL returns the sweep lifetime for unanswered requests.
func (c *Config) BridgePendingTTL() time.Duration {
	return time.Duration(c.Bridge.PendingTTLSeconds) * time.Second
}

// DBPath returns the SQLite credential store location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "data", "veranda.db")
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}
