package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gatepass/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/gatepass"
	configFileName = "config.yaml"

	// projectConfigFileName is looked up in the working directory,
	// letting a project pin its own server list.
	projectConfigFileName = "gatepass.yaml"

	// configPathEnv overrides the lookup chain with an explicit file.
	configPathEnv = "GATEPASS_CONFIG"
)

// Injectable for tests.
var (
	osUserHomeDir = os.UserHomeDir

	getProjectConfigPath = func() (string, error) {
		return projectConfigFileName, nil
	}

	getUserConfigPath = func() (string, error) {
		homeDir, err := osUserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(homeDir, userConfigDir, configFileName), nil
	}
)

// DefaultConfigDir returns the per-user gatepass directory,
// ~/.config/gatepass.
func DefaultConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load loads the configuration along the lookup chain: the file named
// by GATEPASS_CONFIG, then ./gatepass.yaml, then
// ~/.config/gatepass/config.yaml, then built-in defaults. The explicit
// environment path must exist; the others are skipped when missing.
func Load() (*Config, error) {
	if path := os.Getenv(configPathEnv); path != "" {
		// An explicitly requested file that is missing is an error,
		// not a fallthrough.
		return LoadFromPath(path)
	}

	if path, err := getProjectConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	path, err := getUserConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	logging.Debug("Config", "No configuration file found, using defaults")
	return &Config{}, nil
}

// LoadFromPath loads and validates the configuration file at path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config from %s: %w", path, err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config from %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	logging.Info("Config", "Loaded configuration from %s", path)
	return config, nil
}

// Validate checks structural constraints: every server has an id and a
// URL, and ids are unique.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.ID == "" {
			return fmt.Errorf("server %d has no id", i)
		}
		if s.URL == "" {
			return fmt.Errorf("server %q has no url", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate server id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
