package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// Zero values are replaced with defaults by ApplyDefaults.
type Timeouts struct {
	Connect      time.Duration `yaml:"connect"`       // SSH dial and handshake
	HealthCheck  time.Duration `yaml:"health_check"`  // liveness probe on a cached connection
	Command      time.Duration `yaml:"command"`       // single remote command
	Bootstrap    time.Duration `yaml:"bootstrap"`     // `tnr connect` key provisioning
	StatusWait   time.Duration `yaml:"status_wait"`   // instance status transitions
	ScriptWait   time.Duration `yaml:"script_wait"`   // waiting for a tmux script to finish
	PollInterval time.Duration `yaml:"poll_interval"` // status and completion polling
}

// Default timeout values.
const (
	DefaultConnectTimeout     = 30 * time.Second
	DefaultHealthCheckTimeout = 5 * time.Second
	DefaultCommandTimeout     = 60 * time.Second
	DefaultBootstrapTimeout   = 60 * time.Second
	DefaultStatusWaitTimeout  = 5 * time.Minute
	DefaultScriptWaitTimeout  = 120 * time.Second
	DefaultPollInterval       = 1 * time.Second
)

// DefaultTimeouts returns the built-in timeout values.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:      DefaultConnectTimeout,
		HealthCheck:  DefaultHealthCheckTimeout,
		Command:      DefaultCommandTimeout,
		Bootstrap:    DefaultBootstrapTimeout,
		StatusWait:   DefaultStatusWaitTimeout,
		ScriptWait:   DefaultScriptWaitTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - TNRCTL_TIMEOUT_CONNECT (default: 30s)
//   - TNRCTL_TIMEOUT_HEALTH_CHECK (default: 5s)
//   - TNRCTL_TIMEOUT_COMMAND (default: 60s)
//   - TNRCTL_TIMEOUT_BOOTSTRAP (default: 60s)
//   - TNRCTL_TIMEOUT_STATUS_WAIT (default: 5m)
//   - TNRCTL_TIMEOUT_SCRIPT_WAIT (default: 2m)
//   - TNRCTL_POLL_INTERVAL (default: 1s)
func LoadTimeouts() *Timeouts {
	t := DefaultTimeouts()
	t.applyEnv()
	return &t
}

// applyEnv overrides fields whose environment variable is set and valid.
func (t *Timeouts) applyEnv() {
	t.Connect = parseDuration("TNRCTL_TIMEOUT_CONNECT", t.Connect)
	t.HealthCheck = parseDuration("TNRCTL_TIMEOUT_HEALTH_CHECK", t.HealthCheck)
	t.Command = parseDuration("TNRCTL_TIMEOUT_COMMAND", t.Command)
	t.Bootstrap = parseDuration("TNRCTL_TIMEOUT_BOOTSTRAP", t.Bootstrap)
	t.StatusWait = parseDuration("TNRCTL_TIMEOUT_STATUS_WAIT", t.StatusWait)
	t.ScriptWait = parseDuration("TNRCTL_TIMEOUT_SCRIPT_WAIT", t.ScriptWait)
	t.PollInterval = parseDuration("TNRCTL_POLL_INTERVAL", t.PollInterval)
}

// ApplyDefaults fills zero fields with default values.
func (t *Timeouts) ApplyDefaults() {
	d := DefaultTimeouts()
	if t.Connect <= 0 {
		t.Connect = d.Connect
	}
	if t.HealthCheck <= 0 {
		t.HealthCheck = d.HealthCheck
	}
	if t.Command <= 0 {
		t.Command = d.Command
	}
	if t.Bootstrap <= 0 {
		t.Bootstrap = d.Bootstrap
	}
	if t.StatusWait <= 0 {
		t.StatusWait = d.StatusWait
	}
	if t.ScriptWait <= 0 {
		t.ScriptWait = d.ScriptWait
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseBool parses a boolean from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseBool(envVar string, defaultVal bool) bool {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}

	return b
}
