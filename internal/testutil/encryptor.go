package testutil

import (
	"helix/internal/encryption"
)

// NewTestEncryptor creates a deterministic, passphrase-checking encryptor for
// testing archive backups.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
