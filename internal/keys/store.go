package keys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
)

const (
	storeDirMode = 0o700
	keyFileMode  = 0o600
)

// Store is the on-disk secrets directory. Keys are never deleted by tnrctl.
type Store struct {
	root string
	log  logr.Logger
	mu   sync.Mutex
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string, log logr.Logger) *Store {
	return &Store{root: filepath.Clean(dir), log: log}
}

// Dir returns the secrets directory.
func (s *Store) Dir() string { return s.root }

// KeyPath returns where the key for id is stored.
func (s *Store) KeyPath(id instance.ID) (string, error) {
	if _, err := instance.ParseID(id.String()); err != nil {
		return "", err
	}
	return filepath.Join(s.root, instance.KeyFileName(id)), nil
}

// Load reads and parses the stored key for id. Group or world permission
// bits are stripped before reading. A missing file yields ErrKeyNotStored.
func (s *Store) Load(ctx context.Context, id instance.ID) (*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.KeyPath(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotStored, path)
		}
		return nil, fmt.Errorf("stat key %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("key path %s is a directory", path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		s.log.Info("Key file permissions too open, restricting to 0600", "path", path, "mode", fmt.Sprintf("%#o", perm))
		if err := os.Chmod(path, keyFileMode); err != nil {
			return nil, fmt.Errorf("secure key %s: %w", path, err)
		}
	}

	// #nosec G304 - path is built from the validated instance id
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", path, err)
	}
	return ParseMaterial(id, path, data)
}

// Save validates pem and persists it as the key for id.
func (s *Store) Save(ctx context.Context, id instance.ID, pem []byte) (*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.KeyPath(id)
	if err != nil {
		return nil, err
	}

	if !bytes.HasSuffix(pem, []byte("\n")) {
		pem = append(bytes.Clone(pem), '\n')
	}
	m, err := ParseMaterial(id, path, pem)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, storeDirMode); err != nil {
		return nil, fmt.Errorf("create secrets directory: %w", err)
	}
	if err := writeFileAtomic(path, pem, keyFileMode); err != nil {
		return nil, fmt.Errorf("write key %s: %w", path, err)
	}
	s.log.V(1).Info("Stored SSH key", "instance", id, "path", path, "algorithm", m.Algorithm)
	return m, nil
}

// Import copies the key at src into the store as the key for id.
func (s *Store) Import(ctx context.Context, id instance.ID, src string) (*Material, error) {
	// #nosec G304 - src comes from the user's SSH config
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	return s.Save(ctx, id, data)
}

// APIKey reads api_key.txt from the store.
func (s *Store) APIKey() (string, error) {
	return ReadAPIKey(filepath.Join(s.root, instance.APIKeyFileName))
}

// ReadAPIKey reads a token file. A missing or empty file is a
// *config.ConfigurationError.
func ReadAPIKey(path string) (string, error) {
	hint := "set " + config.EnvAPIKey + " or write the token to " + path

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return "", config.NewConfigurationError("api_key", hint, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", config.NewConfigurationError("api_key", hint, fmt.Errorf("%s is empty", path))
	}
	return token, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
