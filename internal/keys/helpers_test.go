package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/imamik/tnrctl/internal/util/keygen"
)

func ed25519PEM(t *testing.T) []byte {
	t.Helper()
	kp, err := keygen.GenerateEd25519KeyPair("test")
	require.NoError(t, err)
	return kp.PrivateKey
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "secrets"), testr.New(t))
}

func writeFile(t *testing.T, path string, data []byte, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, data, mode))
	require.NoError(t, os.Chmod(path, mode))
}
