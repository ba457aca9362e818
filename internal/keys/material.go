package keys

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/tnrctl/internal/instance"
)

// Algorithm is the key type of a private key.
type Algorithm string

// Supported key algorithms.
const (
	AlgorithmRSA     Algorithm = "rsa"
	AlgorithmECDSA   Algorithm = "ecdsa"
	AlgorithmEd25519 Algorithm = "ed25519"
)

// ErrUnsupportedAlgorithm is returned for keys other than RSA, ECDSA and Ed25519.
var ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")

// Material is a usable private key for one instance.
type Material struct {
	Instance  instance.ID
	Path      string
	Algorithm Algorithm
	PEM       []byte
	Signer    ssh.Signer
}

// ParseMaterial parses a PEM or OpenSSH private key. Passphrase protected
// keys are rejected.
func ParseMaterial(id instance.ID, path string, pem []byte) (*Material, error) {
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("key %s is passphrase protected", path)
		}
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}

	alg, err := algorithmOf(signer.PublicKey().Type())
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", path, err)
	}

	return &Material{
		Instance:  id,
		Path:      path,
		Algorithm: alg,
		PEM:       pem,
		Signer:    signer,
	}, nil
}

func algorithmOf(keyType string) (Algorithm, error) {
	switch keyType {
	case ssh.KeyAlgoRSA:
		return AlgorithmRSA, nil
	case ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521:
		return AlgorithmECDSA, nil
	case ssh.KeyAlgoED25519:
		return AlgorithmEd25519, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, keyType)
	}
}
