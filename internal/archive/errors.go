package archive

import "errors"

// Load errors indicate the archive file could not be read or failed validation.
var (
	// ErrInvalidPath indicates the archive file could not be opened.
	ErrInvalidPath = errors.New("invalid archive file path")

	// ErrRead indicates the archive file was opened but could not be read.
	ErrRead = errors.New("failed to read archive file")

	// ErrUnsafeArchive indicates a framing marker did not match.
	ErrUnsafeArchive = errors.New("unsafe archive file")

	// ErrInvalidArchive indicates the length prefix is missing, malformed or
	// larger than the masked region.
	ErrInvalidArchive = errors.New("invalid archive structure")

	// ErrInvalidEncoding indicates the header or body is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid utf-8 in archive")
)

// Body errors describe what happened to a document that could not be parsed.
var (
	// ErrBodyReset is returned alongside an empty document when the body could
	// not be parsed and recovery was enabled.
	ErrBodyReset = errors.New("archive body could not be parsed, reset to empty document")

	// ErrBodyFatal is only observable when Options.Exit returns instead of
	// terminating the process.
	ErrBodyFatal = errors.New("archive body could not be parsed")
)

// Write and mutation errors.
var (
	// ErrCannotWrite indicates an auto-save triggered by Set failed.
	ErrCannotWrite = errors.New("cannot write archive")

	// ErrInvalidHeader indicates a header field holds a character reserved by
	// the header text format.
	ErrInvalidHeader = errors.New("invalid archive header field")

	// ErrNotObject indicates Set was called on a document that is not an object.
	ErrNotObject = errors.New("archive document is not an object")
)
