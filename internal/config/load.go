package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables recognised by Load.
const (
	EnvAPIKey        = "TNR_API_KEY"
	EnvSecretsDir    = "TNRCTL_SECRETS_DIR"
	EnvAPIURL        = "TNRCTL_API_URL"
	EnvAutoSetupKeys = "TNRCTL_AUTO_SETUP_KEYS"
)

// LoadFile reads and parses the configuration from a YAML file.
// Defaults are not applied.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration: the YAML file at path (if it
// exists), then environment overrides, then defaults. An empty path means
// DefaultConfigPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	cfg := &Config{}
	loaded, err := LoadFile(path)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// optional
	default:
		return nil, NewConfigurationError("config_file", "check --config", err)
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvSecretsDir); v != "" {
		c.SecretsDir = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIBaseURL = v
	}
	c.AutoSetupKeys = parseBool(EnvAutoSetupKeys, c.AutoSetupKeys)
	c.Timeouts.applyEnv()
}
