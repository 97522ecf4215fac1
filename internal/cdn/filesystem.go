package cdn

import "io"

// FilesystemManager abstracts the file access needed to ingest a directory.
type FilesystemManager interface {
	// Resolve makes rawPath absolute, stats it and rejects anything that is
	// not a regular file or directory.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// FindFiles lists the regular files under a directory. When recursive is
	// false only direct children are returned.
	FindFiles(path *Path, recursive bool) ([]*Path, error)

	// IsIgnored reports whether path matches an ignore pattern, relative to
	// the ingest root.
	IsIgnored(path *Path, root string) (bool, error)
}
