package cdn

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// IDLength is the number of hex characters in a blob ID.
const IDLength = 64

// NewID returns the content address of data: lowercase hex SHA3-256.
func NewID(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseID validates a blob ID and returns it in canonical lowercase form.
func ParseID(raw string) (string, error) {
	if len(raw) != IDLength {
		return "", fmt.Errorf("%w: want %d hex characters, got %d", ErrMalformedID, IDLength, len(raw))
	}
	id := strings.ToLower(raw)
	if _, err := hex.DecodeString(id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedID, err)
	}
	return id, nil
}
