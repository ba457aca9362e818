package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvAPIKey, EnvSecretsDir, EnvAPIURL, EnvAutoSetupKeys,
		"TNRCTL_TIMEOUT_CONNECT", "TNRCTL_TIMEOUT_HEALTH_CHECK", "TNRCTL_TIMEOUT_COMMAND",
		"TNRCTL_TIMEOUT_BOOTSTRAP", "TNRCTL_TIMEOUT_STATUS_WAIT", "TNRCTL_TIMEOUT_SCRIPT_WAIT",
		"TNRCTL_POLL_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, "ubuntu", cfg.SSHUser)
	assert.Equal(t, 22, cfg.SSHPort)
	assert.Equal(t, "tnr", cfg.HostAliasPrefix)
	assert.Equal(t, "tnr", cfg.CLIPath)
	assert.False(t, cfg.AutoSetupKeys)
	assert.Equal(t, 10*time.Second, cfg.FreshnessWindow)
	assert.Equal(t, filepath.Join(cfg.SecretsDir, "api_key.txt"), cfg.APIKeyFile)
	assert.Equal(t, DefaultTimeouts(), cfg.Timeouts)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	secrets := t.TempDir()
	path := writeConfig(t, `
api_base_url: http://localhost:9000
ssh_user: root
ssh_port: 2222
auto_setup_keys: true
freshness_window: 30s
timeouts:
  connect: 45s
  script_wait: 10m
`)
	t.Setenv(EnvSecretsDir, secrets)
	t.Setenv(EnvAPIKey, "tok")
	t.Setenv("TNRCTL_POLL_INTERVAL", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.APIBaseURL)
	assert.Equal(t, "root", cfg.SSHUser)
	assert.Equal(t, 2222, cfg.SSHPort)
	assert.True(t, cfg.AutoSetupKeys)
	assert.Equal(t, 30*time.Second, cfg.FreshnessWindow)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.ScriptWait)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeouts.PollInterval)
	assert.Equal(t, DefaultHealthCheckTimeout, cfg.Timeouts.HealthCheck)
	assert.Equal(t, secrets, cfg.SecretsDir)
	assert.Equal(t, filepath.Join(secrets, "api_key.txt"), cfg.APIKeyFile)
	assert.Equal(t, "tok", cfg.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "api_base_url: http://from-file:1\nauto_setup_keys: true\n")
	t.Setenv(EnvAPIURL, "http://from-env:2")
	t.Setenv(EnvAutoSetupKeys, "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:2", cfg.APIBaseURL)
	assert.False(t, cfg.AutoSetupKeys)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "ssh_port: [not, a, port]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.APIBaseURL = "not a url" }, "api_base_url"},
		{"bad scheme", func(c *Config) { c.APIBaseURL = "ftp://x" }, "api_base_url"},
		{"bad port", func(c *Config) { c.SSHPort = 70000 }, "ssh_port"},
		{"bad prefix", func(c *Config) { c.HostAliasPrefix = "a b" }, "host_alias_prefix"},
		{"poll > wait", func(c *Config) { c.Timeouts.PollInterval = time.Hour }, "timeouts.poll_interval"},
		{"health > connect", func(c *Config) { c.Timeouts.HealthCheck = time.Hour }, "timeouts.health_check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, ".ssh", "id"), ExpandHome("~/.ssh/id"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("cli_path", "install tnr", errors.New("not found"))

	assert.Equal(t, "configuration error: cli_path: not found (install tnr)", err.Error())
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.EqualError(t, errors.Unwrap(err), "not found")
}
