package keygen

import (
	"bytes"
	"encoding/pem"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair_ValidBits(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair(2048) failed: %v", err)
	}

	block, _ := pem.Decode(keyPair.PrivateKey)
	if block == nil {
		t.Fatal("failed to decode PEM block")
	}
	if block.Type != "RSA PRIVATE KEY" {
		t.Errorf("expected PEM type 'RSA PRIVATE KEY', got %q", block.Type)
	}
	if !strings.HasPrefix(string(keyPair.PublicKey), "ssh-rsa ") {
		t.Errorf("expected public key to start with 'ssh-rsa ', got %q", keyPair.PublicKey)
	}
}

func TestGenerateRSAKeyPair_InvalidBits(t *testing.T) {
	t.Parallel()
	if _, err := GenerateRSAKeyPair(0); err == nil {
		t.Error("expected error for 0 bits")
	}
}

func TestGenerateKeyPairs_SignerAlgorithms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		generate func() (*KeyPair, error)
		wantType string
	}{
		{"rsa", func() (*KeyPair, error) { return GenerateRSAKeyPair(2048) }, ssh.KeyAlgoRSA},
		{"ed25519", func() (*KeyPair, error) { return GenerateEd25519KeyPair("test") }, ssh.KeyAlgoED25519},
		{"ecdsa", func() (*KeyPair, error) { return GenerateECDSAKeyPair("test") }, ssh.KeyAlgoECDSA256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			keyPair, err := tt.generate()
			if err != nil {
				t.Fatalf("generate failed: %v", err)
			}

			signer, err := ssh.ParsePrivateKey(keyPair.PrivateKey)
			if err != nil {
				t.Fatalf("failed to parse generated private key: %v", err)
			}
			if got := signer.PublicKey().Type(); got != tt.wantType {
				t.Errorf("expected key type %q, got %q", tt.wantType, got)
			}

			// The public half must match the private key.
			pub, _, _, _, err := ssh.ParseAuthorizedKey(keyPair.PublicKey)
			if err != nil {
				t.Fatalf("failed to parse public key: %v", err)
			}
			if !bytes.Equal(pub.Marshal(), signer.PublicKey().Marshal()) {
				t.Error("public key does not correspond to private key")
			}
		})
	}
}

func TestGenerateEd25519KeyPair_Uniqueness(t *testing.T) {
	t.Parallel()
	first, err := GenerateEd25519KeyPair("")
	if err != nil {
		t.Fatal(err)
	}
	second, err := GenerateEd25519KeyPair("")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first.PrivateKey, second.PrivateKey) {
		t.Error("expected different private keys")
	}
}
