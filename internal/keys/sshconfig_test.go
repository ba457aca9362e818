package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSHConfig_IdentityFile(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config")
	writeFile(t, path, []byte(`
Host *
    IdentityFile ~/.ssh/id_default

Host tnr-5555
    IdentityFile /keys/wrong

Host tnr-555
    HostName 10.0.0.5
    User ubuntu
    IdentityFile ~/.thunder/keys/555

Host tnr-42 other
    identityfile "/abs/key 42"

Host tnr-77
    HostName 10.0.0.7
`), 0o600)
	cfg := NewSSHConfig(path)

	got, err := cfg.IdentityFile("tnr-555")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".thunder", "keys", "555"), got)

	got, err = cfg.IdentityFile("tnr-42")
	require.NoError(t, err)
	assert.Equal(t, "/abs/key 42", got)

	_, err = cfg.IdentityFile("tnr-77")
	assert.ErrorIs(t, err, ErrNoIdentityFile)
	assert.EqualError(t, err, "host entry has no IdentityFile: tnr-77")

	_, err = cfg.IdentityFile("tnr-1")
	assert.ErrorIs(t, err, ErrNoHostEntry, "wildcard Host * must not match")
}

func TestSSHConfig_MissingFile(t *testing.T) {
	_, err := NewSSHConfig(filepath.Join(t.TempDir(), "nope")).IdentityFile("tnr-1")
	assert.ErrorIs(t, err, ErrNoHostEntry)
}
