package keys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/kevinburke/ssh_config"

	"github.com/imamik/tnrctl/internal/config"
)

// HostLookup finds the identity file configured for a host alias.
type HostLookup interface {
	IdentityFile(alias string) (string, error)
}

// SSHConfig reads an OpenSSH client configuration file. It never writes it.
type SSHConfig struct {
	path string
}

// NewSSHConfig returns a lookup over the file at path.
func NewSSHConfig(path string) *SSHConfig {
	return &SSHConfig{path: path}
}

// IdentityFile returns the expanded IdentityFile of the Host block whose
// pattern is exactly alias. Wildcard blocks such as "Host *" never match.
func (c *SSHConfig) IdentityFile(alias string) (string, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (%s does not exist)", ErrNoHostEntry, alias, c.path)
		}
		return "", fmt.Errorf("open SSH config: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return "", fmt.Errorf("parse SSH config %s: %w", c.path, err)
	}

	for _, host := range cfg.Hosts {
		if !hasExactPattern(host, alias) {
			continue
		}
		for _, node := range host.Nodes {
			kv, ok := node.(*ssh_config.KV)
			if !ok || !strings.EqualFold(kv.Key, "IdentityFile") {
				continue
			}
			value := strings.Trim(strings.TrimSpace(kv.Value), `"`)
			if value == "" {
				continue
			}
			return config.ExpandHome(value), nil
		}
		return "", fmt.Errorf("%w: %s", ErrNoIdentityFile, alias)
	}
	return "", fmt.Errorf("%w: %s", ErrNoHostEntry, alias)
}

func hasExactPattern(host *ssh_config.Host, alias string) bool {
	for _, p := range host.Patterns {
		if p.String() == alias {
			return true
		}
	}
	return false
}
