package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/util/keygen"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// PrivateKeyPEM generates an OpenSSH ed25519 private key.
func PrivateKeyPEM(t *testing.T) []byte {
	t.Helper()
	kp, err := keygen.GenerateEd25519KeyPair("tnrctl-test")
	require.NoError(t, err)
	return kp.PrivateKey
}

// KeyMaterial returns parsed key material for id backed by a fresh key.
func KeyMaterial(t *testing.T, id instance.ID) *keys.Material {
	t.Helper()
	m, err := keys.ParseMaterial(id, "/nonexistent/"+instance.KeyFileName(id), PrivateKeyPEM(t))
	require.NoError(t, err)
	return m
}
