package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/orchestration"
	"github.com/imamik/tnrctl/internal/util/keygen"
)

// KeysResolve handles keys resolve. autoSetup enables the CLI bootstrap
// for this call even when the configuration disables it.
func KeysResolve(ctx context.Context, opts Options, rawID string, autoSetup bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	enable := func(cfg *config.Config) {
		if autoSetup {
			cfg.AutoSetupKeys = true
		}
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		material, err := m.Keys().Resolve(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Instance %s\n", id)
		fmt.Printf("  Key:         %s\n", material.Path)
		fmt.Printf("  Algorithm:   %s\n", material.Algorithm)
		fmt.Printf("  Fingerprint: %s\n", ssh.FingerprintSHA256(material.Signer.PublicKey()))
		return nil
	}, enable)
}

// KeysImport handles keys import.
func KeysImport(ctx context.Context, opts Options, rawID, src string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withStore(opts, func(store *keys.Store) error {
		material, err := store.Import(ctx, id, src)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s key for instance %s to %s\n",
			style(successStyle, "Imported"), material.Algorithm, id, material.Path)
		return nil
	})
}

// KeysGenerate handles keys generate. An existing key is only replaced
// with force.
func KeysGenerate(ctx context.Context, opts Options, rawID, algorithm string, force bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	comment := "tnrctl-" + id.String()

	var generate func() (*keygen.KeyPair, error)
	switch keys.Algorithm(algorithm) {
	case keys.AlgorithmEd25519:
		generate = func() (*keygen.KeyPair, error) { return keygen.GenerateEd25519KeyPair(comment) }
	case keys.AlgorithmECDSA:
		generate = func() (*keygen.KeyPair, error) { return keygen.GenerateECDSAKeyPair(comment) }
	case keys.AlgorithmRSA:
		generate = func() (*keygen.KeyPair, error) { return keygen.GenerateRSAKeyPair(4096) }
	default:
		return fmt.Errorf("unsupported key type %q: use ed25519, ecdsa or rsa", algorithm)
	}

	return withStore(opts, func(store *keys.Store) error {
		existing, err := store.Load(ctx, id)
		switch {
		case err == nil && !force:
			return fmt.Errorf("instance %s already has a key at %s (use --force to replace it)", id, existing.Path)
		case err != nil && !errors.Is(err, keys.ErrKeyNotStored) && !force:
			return err
		}

		kp, err := generate()
		if err != nil {
			return err
		}
		material, err := store.Save(ctx, id, kp.PrivateKey)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored private key at %s\n", material.Path)
		fmt.Print(string(kp.PublicKey))
		return nil
	})
}
