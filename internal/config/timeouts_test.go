package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	clearEnv(t)

	timeouts := LoadTimeouts()

	assert.Equal(t, 30*time.Second, timeouts.Connect)
	assert.Equal(t, 5*time.Second, timeouts.HealthCheck)
	assert.Equal(t, 60*time.Second, timeouts.Command)
	assert.Equal(t, 60*time.Second, timeouts.Bootstrap)
	assert.Equal(t, 5*time.Minute, timeouts.StatusWait)
	assert.Equal(t, 2*time.Minute, timeouts.ScriptWait)
	assert.Equal(t, 1*time.Second, timeouts.PollInterval)
}

func TestLoadTimeouts_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TNRCTL_TIMEOUT_CONNECT", "10s")
	t.Setenv("TNRCTL_TIMEOUT_BOOTSTRAP", "3m")
	t.Setenv("TNRCTL_TIMEOUT_SCRIPT_WAIT", "1h")

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.Connect)
	assert.Equal(t, 3*time.Minute, timeouts.Bootstrap)
	assert.Equal(t, time.Hour, timeouts.ScriptWait)
	assert.Equal(t, DefaultCommandTimeout, timeouts.Command)
}

func TestLoadTimeouts_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TNRCTL_TIMEOUT_CONNECT", "invalid")
	t.Setenv("TNRCTL_POLL_INTERVAL", "")

	timeouts := LoadTimeouts()

	assert.Equal(t, DefaultConnectTimeout, timeouts.Connect, "invalid values fall back to defaults")
	assert.Equal(t, DefaultPollInterval, timeouts.PollInterval)
}

func TestTimeouts_ApplyDefaults(t *testing.T) {
	timeouts := Timeouts{Connect: 7 * time.Second}
	timeouts.ApplyDefaults()

	assert.Equal(t, 7*time.Second, timeouts.Connect)
	assert.Equal(t, DefaultHealthCheckTimeout, timeouts.HealthCheck)
	assert.Equal(t, DefaultScriptWaitTimeout, timeouts.ScriptWait)
}

func TestParseBool(t *testing.T) {
	t.Setenv("TNRCTL_TEST_BOOL", "true")
	assert.True(t, parseBool("TNRCTL_TEST_BOOL", false))
	t.Setenv("TNRCTL_TEST_BOOL", "garbage")
	assert.False(t, parseBool("TNRCTL_TEST_BOOL", false))
	t.Setenv("TNRCTL_TEST_BOOL", "")
	assert.True(t, parseBool("TNRCTL_TEST_BOOL", true))
}
