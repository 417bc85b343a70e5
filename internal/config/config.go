// ABOUTME: Configuration management for codestats-ls with YAML config loading.
// ABOUTME: Resolves API URL and token from env, config.yaml, or the shared config.toml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the public Code::Stats endpoint.
const DefaultAPIURL = "https://codestats.net"

// Environment variables that override the config file.
const (
	EnvAPIURL   = "CODE_STATS_API_URL"
	EnvAPIToken = "CODE_STATS_API_TOKEN"
)

// ErrMissingToken is returned by Validate when no API token could be resolved.
var ErrMissingToken = errors.New(EnvAPIToken + " must be set")

// Config stores codestats-ls configuration loaded from ~/.config/code-stats/config.yaml.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds the Code::Stats endpoint and credential.
type APIConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// CacheConfig holds an optional override for the pulse cache directory.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// sharedConfig is the config.toml read by the other Code::Stats editor plugins.
type sharedConfig struct {
	APIURL   string `toml:"api_url"`
	APIToken string `toml:"api_token"`
}

// GetAPIURL returns the configured API URL, defaulting to DefaultAPIURL.
func (c *Config) GetAPIURL() string {
	if c.API.URL != "" {
		return c.API.URL
	}
	return DefaultAPIURL
}

// HasToken returns true if an API token is configured.
func (c *Config) HasToken() bool {
	return c.API.Token != ""
}

// Validate checks that the config can be used to send pulses.
func (c *Config) Validate() error {
	if !c.HasToken() {
		return ErrMissingToken
	}
	raw := c.GetAPIURL()
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: expected an http or https URL", raw)
	}
	return nil
}

// LogLevel returns the configured slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetCacheDir returns the pulse cache directory, defaulting to $XDG_DATA_HOME/code-stats-ls/cache.
func (c *Config) GetCacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return ExpandPath(c.Cache.Dir)
	}
	return CacheDir()
}

// CacheDir returns the default pulse cache directory.
func CacheDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "code-stats-ls", "cache"), nil
}

// configDir returns the directory holding config.yaml and config.toml.
func configDir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "code-stats"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetSharedConfigPath returns the path of the config.toml shared with other Code::Stats plugins.
func GetSharedConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// LoadFile reads config.yaml only. Returns default config if the file doesn't exist.
func LoadFile() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Load reads config.yaml, fills gaps from config.toml, then applies environment overrides.
func Load() (*Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return nil, err
	}

	shared, err := loadShared()
	if err != nil {
		return nil, err
	}
	if cfg.API.URL == "" {
		cfg.API.URL = shared.APIURL
	}
	if cfg.API.Token == "" {
		cfg.API.Token = shared.APIToken
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		cfg.API.Token = v
	}
	return cfg, nil
}

// loadShared reads config.toml. A missing file is not an error.
func loadShared() (sharedConfig, error) {
	path, err := GetSharedConfigPath()
	if err != nil {
		return sharedConfig{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return sharedConfig{}, nil
		}
		return sharedConfig{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	var shared sharedConfig
	if _, err := toml.DecodeFile(path, &shared); err != nil {
		return sharedConfig{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return shared, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
