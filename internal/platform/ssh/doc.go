// Package ssh is the SSH transport used by the connection pool.
//
// A [Dialer] opens an authenticated [Conn] to an instance; a Conn runs one
// command per SSH session and reports stdout, stderr and the exit code.
// Non-zero exit codes are data, not errors: an error from Run always means
// the transport itself failed.
//
// Security: host key verification is disabled by default because instance
// addresses are ephemeral and reused. Set Config.HostKeyCallback to verify.
package ssh
