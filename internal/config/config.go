package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// CircleCIConfig holds the API key and the project to monitor.
type CircleCIConfig struct {
	Token       string `toml:"token"`
	ProjectSlug string `toml:"project_slug"`
	OnlyMine    bool   `toml:"only_mine"`
}

// Config holds all circledeck configuration.
type Config struct {
	CircleCI      CircleCIConfig `toml:"circleci"`
	Refresh       string         `toml:"refresh,omitempty"`
	RefreshJitter string         `toml:"refresh_jitter,omitempty"`
	Concurrency   int            `toml:"concurrency,omitempty"`
	LogFile       string         `toml:"log_file,omitempty"`
}

const (
	defaultRefresh     = "@every 10s"
	defaultJitter      = 2 * time.Second
	defaultConcurrency = 1
)

// RefreshOrDefault returns the refresh schedule expression, "@every 10s" when unset.
func (c Config) RefreshOrDefault() string {
	if c.Refresh != "" {
		return c.Refresh
	}
	return defaultRefresh
}

// JitterOrDefault parses RefreshJitter. An empty value means 2s.
func (c Config) JitterOrDefault() (time.Duration, error) {
	if c.RefreshJitter == "" {
		return defaultJitter, nil
	}
	d, err := time.ParseDuration(c.RefreshJitter)
	if err != nil {
		return 0, fmt.Errorf("parsing refresh_jitter: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("refresh_jitter must not be negative, got %s", d)
	}
	return d, nil
}

// ConcurrencyOrDefault returns Concurrency if set, otherwise 1.
func (c Config) ConcurrencyOrDefault() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return defaultConcurrency
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values:
//   - CIRCLECI_TOKEN (or CIRCLE_TOKEN) overrides circleci.token
//   - CIRCLECI_PROJECT                 overrides circleci.project_slug
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// DefaultConfigPath returns the default path for the circledeck config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return home + "/.config/circledeck/config.toml"
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CIRCLE_TOKEN"); v != "" {
		cfg.CircleCI.Token = v
	}
	if v := os.Getenv("CIRCLECI_TOKEN"); v != "" {
		cfg.CircleCI.Token = v
	}
	if v := os.Getenv("CIRCLECI_PROJECT"); v != "" {
		cfg.CircleCI.ProjectSlug = v
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}

// SaveOnlyMine rereads the file at path, updates only the only-mine flag and
// writes it back, so values coming from the environment are not persisted.
func SaveOnlyMine(path string, onlyMine bool) error {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	cfg.CircleCI.OnlyMine = onlyMine
	return Save(path, cfg)
}
