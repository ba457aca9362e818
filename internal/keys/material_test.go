package keys

import (
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/tnrctl/internal/util/keygen"
)

func TestParseMaterial_Algorithms(t *testing.T) {
	t.Parallel()

	rsaKey, err := keygen.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	edKey, err := keygen.GenerateEd25519KeyPair("ed")
	require.NoError(t, err)
	ecKey, err := keygen.GenerateECDSAKeyPair("ec")
	require.NoError(t, err)

	tests := []struct {
		name string
		pem  []byte
		want Algorithm
	}{
		{"rsa", rsaKey.PrivateKey, AlgorithmRSA},
		{"ed25519", edKey.PrivateKey, AlgorithmEd25519},
		{"ecdsa", ecKey.PrivateKey, AlgorithmECDSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMaterial("555", "/tmp/k", tt.pem)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Algorithm)
			assert.Equal(t, "/tmp/k", m.Path)
			assert.NotNil(t, m.Signer)
		})
	}
}

func TestParseMaterial_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ParseMaterial("1", "/tmp/k", []byte("not a key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse private key /tmp/k")
}

func TestParseMaterial_Passphrase(t *testing.T) {
	t.Parallel()

	edKey, err := keygen.GenerateEd25519KeyPair("ed")
	require.NoError(t, err)
	raw, err := ssh.ParseRawPrivateKey(edKey.PrivateKey)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(raw, "", []byte("secret"))
	require.NoError(t, err)

	_, err = ParseMaterial("1", "/tmp/k", pem.EncodeToMemory(block))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passphrase protected")
}

func TestAlgorithmOf(t *testing.T) {
	t.Parallel()

	for _, keyType := range []string{ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521} {
		alg, err := algorithmOf(keyType)
		require.NoError(t, err)
		assert.Equal(t, AlgorithmECDSA, alg)
	}

	for _, keyType := range []string{"ssh-dss", ssh.KeyAlgoSKED25519, "ssh-foo"} {
		_, err := algorithmOf(keyType)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm, keyType)
	}
}
