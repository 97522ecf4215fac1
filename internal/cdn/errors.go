package cdn

import "errors"

// Lookup errors returned by Service.Resolve and Service.Get. The HTTP layer
// maps each one to a status code.
var (
	// ErrMalformedID indicates a hash or route segment could not be parsed.
	ErrMalformedID = errors.New("cannot parse blob id")

	// ErrBackendUnavailable indicates the blob index could not be reached.
	ErrBackendUnavailable = errors.New("blob backend unavailable")

	// ErrNotFound indicates no blob matches the requested hash and extension.
	ErrNotFound = errors.New("blob not found")
)

// ErrIngestNotDirectory indicates Ingest was given a path that is not a directory.
var ErrIngestNotDirectory = errors.New("ingest path is not a directory")
