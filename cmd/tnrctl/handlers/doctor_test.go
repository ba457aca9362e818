package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/tnrctl/internal/config"
)

func TestDoctor_Healthy(t *testing.T) {
	f := newFixture(t)
	f.api.set("1", "RUNNING", "10.1.0.1")
	require.NoError(t, os.MkdirAll(f.cfg.SecretsDir, 0o700))

	var err error
	out := captureOutput(func() {
		err = Doctor(context.Background(), Options{}, true)
	})
	require.NoError(t, err)

	var report DoctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Config.OK)
	assert.True(t, report.APIKey.OK)
	assert.True(t, report.SecretsDir.OK)
	assert.True(t, report.API.OK)
	assert.Contains(t, report.API.Detail, "1 instances")
	require.NotEmpty(t, report.Tools)
	assert.Equal(t, "tnr", report.Tools[0].Name)
	assert.False(t, report.Tools[0].Required, "tnr is optional without auto key setup")
}

func TestDoctor_NoAPIKey(t *testing.T) {
	f := newFixture(t)
	f.cfg.APIKey = ""

	var err error
	out := captureOutput(func() {
		err = Doctor(context.Background(), Options{}, false)
	})
	var exitErr *ExitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, out, "skipped: no API key")
}

func TestDoctor_BadConfig(t *testing.T) {
	newFixture(t)
	loadConfig = func(string) (*config.Config, error) {
		return nil, config.NewConfigurationError("ssh_port", "use 1-65535", nil)
	}

	var err error
	out := captureOutput(func() {
		err = Doctor(context.Background(), Options{}, false)
	})
	require.Error(t, err)
	assert.Contains(t, out, "configuration error: ssh_port")
}

func TestDoctorReport_Healthy(t *testing.T) {
	t.Parallel()
	ok := CheckItem{OK: true}
	report := DoctorReport{Config: ok, APIKey: ok, API: ok, Tools: []ToolCheck{{Name: "ssh"}}}
	assert.True(t, report.Healthy(), "missing optional tools do not fail")

	report.Tools = append(report.Tools, ToolCheck{Name: "tnr", Required: true})
	assert.False(t, report.Healthy())
}
