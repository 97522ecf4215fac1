package cdn

import (
	"context"
	"io"
)

// Vault stores blob bytes keyed by content hash, plus small named metadata
// items per host such as archive backups.
//
// Implementations return an error wrapping ErrNotFound when content or
// metadata does not exist.
type Vault interface {
	// PutContent stores content identified by its hash. Storing the same hash
	// twice is safe. size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, hash string, r io.Reader, size int64) error

	// GetContent writes the content stored under hash to w.
	GetContent(ctx context.Context, hash string, w io.Writer) error

	// PutMetadata stores a named metadata item for a host, with a version
	// recorded alongside it.
	PutMetadata(ctx context.Context, hostID, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named metadata item for a host to w.
	GetMetadata(ctx context.Context, hostID, name string, w io.Writer) error

	// GetMetadataVersion returns the version of a named metadata item, or 0
	// when nothing has been stored.
	GetMetadataVersion(ctx context.Context, hostID, name string) (int64, error)

	// ValidateSetup verifies the vault is reachable and usable.
	ValidateSetup(ctx context.Context) error
}
