package keygen

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds a key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the PEM-encoded private key.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
// Common bit sizes are 2048 (minimum recommended) and 4096 (high security).
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}

	err = privateKey.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}

	privBlock := pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return newKeyPair(pem.EncodeToMemory(&privBlock), &privateKey.PublicKey)
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair in OpenSSH format.
func GenerateEd25519KeyPair(comment string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 private key: %w", err)
	}
	return marshalOpenSSH(priv, pub, comment)
}

// GenerateECDSAKeyPair generates a new P-256 ECDSA key pair in OpenSSH format.
func GenerateECDSAKeyPair(comment string) (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA private key: %w", err)
	}
	return marshalOpenSSH(priv, &priv.PublicKey, comment)
}

func marshalOpenSSH(priv crypto.PrivateKey, pub crypto.PublicKey, comment string) (*KeyPair, error) {
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return newKeyPair(pem.EncodeToMemory(block), pub)
}

func newKeyPair(privatePEM []byte, pub crypto.PublicKey) (*KeyPair, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey: privatePEM,
		PublicKey:  ssh.MarshalAuthorizedKey(sshPub),
	}, nil
}
