// Package encryption protects archive backups before they leave the host.
package encryption

import (
	"errors"
	"io"
)

// ErrNotConfigured indicates no key pair has been set up yet.
var ErrNotConfigured = errors.New("encryption keys not set up (run `helix keys setup`)")

// Encryptor encrypts backups to a public key. Decryption needs the private
// key, which is only available after Unlock.
type Encryptor interface {
	// Setup creates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a DecryptionContext for the private key.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether Setup has been run.
	IsConfigured() bool
}

// DecryptionContext decrypts data with an unlocked private key.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
