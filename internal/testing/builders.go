package testing

import (
	"path/filepath"
	"time"

	"github.com/imamik/tnrctl/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a builder whose paths all live under root, so
// tests never touch the real home directory.
func NewConfigBuilder(root string) *ConfigBuilder {
	cfg := *config.Default()
	cfg.APIKey = "test-token"
	cfg.SecretsDir = filepath.Join(root, "secrets")
	cfg.APIKeyFile = filepath.Join(root, "secrets", "api_key.txt")
	cfg.SSHConfigPath = filepath.Join(root, "ssh_config")
	cfg.AutoSetupKeys = false
	return &ConfigBuilder{cfg: cfg}
}

// WithAPIBaseURL points the client at url.
func (b *ConfigBuilder) WithAPIBaseURL(url string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.APIBaseURL = url
	return nb
}

// WithAPIKey sets the token; an empty key makes the loader read APIKeyFile.
func (b *ConfigBuilder) WithAPIKey(key string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.APIKey = key
	return nb
}

// WithAutoSetupKeys toggles the CLI bootstrap.
func (b *ConfigBuilder) WithAutoSetupKeys(enabled bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.AutoSetupKeys = enabled
	return nb
}

// WithCLIPath sets the tnr executable.
func (b *ConfigBuilder) WithCLIPath(path string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.CLIPath = path
	return nb
}

// WithFreshnessWindow sets the pool freshness window.
func (b *ConfigBuilder) WithFreshnessWindow(d time.Duration) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.FreshnessWindow = d
	return nb
}

// WithPollInterval shortens polling for fast tests.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Timeouts.PollInterval = d
	return nb
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	return &ConfigBuilder{cfg: b.cfg}
}

// MinimalConfig returns a valid config rooted at root.
func MinimalConfig(root string) *config.Config {
	return NewConfigBuilder(root).Build()
}
