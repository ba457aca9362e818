// Package keygen generates SSH key pairs.
//
// Private keys are PEM encoded (PKCS#1 for RSA, OpenSSH format for
// Ed25519 and ECDSA) and public keys use the authorized_keys format, so
// the output can be written straight into the secrets store.
package keygen
