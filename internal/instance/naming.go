package instance

import "fmt"

// DefaultHostAliasPrefix is the prefix the tnr CLI uses for SSH config entries.
const DefaultHostAliasPrefix = "tnr"

// HostAlias returns the SSH config host alias for an instance, e.g. "tnr-555".
func HostAlias(prefix string, id ID) string {
	if prefix == "" {
		prefix = DefaultHostAliasPrefix
	}
	return fmt.Sprintf("%s-%s", prefix, id)
}

// KeyFileName returns the secrets store file name holding the private key for an instance.
func KeyFileName(id ID) string {
	return fmt.Sprintf("ssh_key_%s", id)
}

// APIKeyFileName is the secrets store file holding the API token.
const APIKeyFileName = "api_key.txt"
