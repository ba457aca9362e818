package config

import (
	"fmt"
	"net/url"
	"regexp"
)

var hostAliasPrefixRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate checks the configuration for common errors. Every failure is a
// *ConfigurationError.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewConfigurationError("api_base_url", "must be an absolute URL", fmt.Errorf("invalid value %q", c.APIBaseURL))
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return NewConfigurationError("api_base_url", "scheme must be http or https", fmt.Errorf("invalid scheme %q", u.Scheme))
	}

	if c.SecretsDir == "" {
		return NewConfigurationError("secrets_dir", "set TNRCTL_SECRETS_DIR", fmt.Errorf("is required"))
	}
	if c.SSHUser == "" {
		return NewConfigurationError("ssh_user", "", fmt.Errorf("is required"))
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		return NewConfigurationError("ssh_port", "must be between 1 and 65535", fmt.Errorf("invalid value %d", c.SSHPort))
	}
	if !hostAliasPrefixRe.MatchString(c.HostAliasPrefix) {
		return NewConfigurationError("host_alias_prefix", "", fmt.Errorf("invalid value %q", c.HostAliasPrefix))
	}
	if c.CLIPath == "" {
		return NewConfigurationError("cli_path", "", fmt.Errorf("is required"))
	}

	if err := c.Timeouts.validate(); err != nil {
		return err
	}
	return nil
}

func (t *Timeouts) validate() error {
	if t.PollInterval > t.ScriptWait {
		return NewConfigurationError("timeouts.poll_interval", "must not exceed timeouts.script_wait",
			fmt.Errorf("%s > %s", t.PollInterval, t.ScriptWait))
	}
	if t.HealthCheck > t.Connect {
		return NewConfigurationError("timeouts.health_check", "must not exceed timeouts.connect",
			fmt.Errorf("%s > %s", t.HealthCheck, t.Connect))
	}
	return nil
}
