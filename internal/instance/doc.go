// Package instance defines the identifiers and records shared by every
// component that talks to a Thunder Compute instance.
//
// Instance identifiers are opaque to the rest of the module. The naming
// helpers here encode the conventions that tie an identifier to local
// artifacts: the SSH host alias written by the tnr CLI and the key file
// kept in the secrets directory.
package instance
