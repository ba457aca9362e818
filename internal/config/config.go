package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/imamik/tnrctl/internal/instance"
)

// Defaults for the top-level settings.
const (
	DefaultAPIBaseURL      = "https://api.thundercompute.com:8443"
	DefaultSSHUser         = "ubuntu"
	DefaultSSHPort         = 22
	DefaultCLIPath         = "tnr"
	DefaultFreshnessWindow = 10 * time.Second
)

// Config is the complete runtime configuration.
type Config struct {
	// APIBaseURL is the lifecycle REST endpoint.
	APIBaseURL string `yaml:"api_base_url"`

	// SecretsDir holds api_key.txt and one ssh_key_<id> per instance.
	SecretsDir string `yaml:"secrets_dir"`

	// APIKeyFile overrides <SecretsDir>/api_key.txt.
	APIKeyFile string `yaml:"api_key_file"`

	// APIKey is only ever set from the TNR_API_KEY environment variable.
	APIKey string `yaml:"-"`

	SSHUser         string `yaml:"ssh_user"`
	SSHPort         int    `yaml:"ssh_port"`
	SSHConfigPath   string `yaml:"ssh_config_path"`
	HostAliasPrefix string `yaml:"host_alias_prefix"`

	// CLIPath is the Thunder Compute CLI used for `tnr connect <id>`.
	CLIPath string `yaml:"cli_path"`

	// AutoSetupKeys enables bootstrapping missing keys through the CLI.
	AutoSetupKeys bool `yaml:"auto_setup_keys"`

	// FreshnessWindow is how long a validated connection is reused without
	// a health check.
	FreshnessWindow time.Duration `yaml:"freshness_window"`

	Timeouts Timeouts `yaml:"timeouts"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.SecretsDir == "" {
		c.SecretsDir = filepath.Join(homeDir(), ".thunder", "secrets")
	}
	c.SecretsDir = ExpandHome(c.SecretsDir)
	if c.APIKeyFile == "" {
		c.APIKeyFile = filepath.Join(c.SecretsDir, instance.APIKeyFileName)
	}
	if c.SSHUser == "" {
		c.SSHUser = DefaultSSHUser
	}
	if c.SSHPort == 0 {
		c.SSHPort = DefaultSSHPort
	}
	if c.SSHConfigPath == "" {
		c.SSHConfigPath = filepath.Join(homeDir(), ".ssh", "config")
	}
	if c.HostAliasPrefix == "" {
		c.HostAliasPrefix = instance.DefaultHostAliasPrefix
	}
	if c.CLIPath == "" {
		c.CLIPath = DefaultCLIPath
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = DefaultFreshnessWindow
	}
	c.APIKeyFile = ExpandHome(c.APIKeyFile)
	c.SSHConfigPath = ExpandHome(c.SSHConfigPath)
	c.Timeouts.ApplyDefaults()
}

// DefaultConfigPath returns ~/.config/tnrctl/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tnrctl", "config.yaml")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}
