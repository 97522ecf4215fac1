package cdn

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Extensions a blob can be served as. Anything unrecognised is served as
// plain text.
const (
	ExtJPEG  = "jpeg"
	ExtPNG   = "png"
	ExtPlain = "plain"
)

// NormalizeExtension maps a file extension, with or without the leading dot,
// to one of the served extensions.
func NormalizeExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return ExtJPEG
	case "png":
		return ExtPNG
	default:
		return ExtPlain
	}
}

// ExtensionFromPath normalises the extension of a file name.
func ExtensionFromPath(path string) string {
	return NormalizeExtension(filepath.Ext(path))
}

// ContentType returns the HTTP content type for a normalised extension.
func ContentType(ext string) string {
	switch ext {
	case ExtJPEG:
		return "image/jpeg"
	case ExtPNG:
		return "image/png"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Blob is content addressed by the SHA3-256 of its bytes.
type Blob struct {
	ID        string
	Extension string
	Size      int64
	Data      []byte
}

// NewBlob hashes data and normalises ext.
func NewBlob(data []byte, ext string) *Blob {
	return &Blob{
		ID:        NewID(data),
		Extension: NormalizeExtension(ext),
		Size:      int64(len(data)),
		Data:      data,
	}
}

// ContentType returns the HTTP content type the blob is served with.
func (b *Blob) ContentType() string {
	return ContentType(b.Extension)
}

// BlobRecord is the stored metadata row for a blob. The bytes live in the vault.
type BlobRecord struct {
	Hash      string
	Extension string
	Size      int64
	CreatedAt time.Time
}

// ParseSegment splits a "<hash>.<ext>" route segment. The extension is
// normalised; the hash must be a valid ID.
func ParseSegment(segment string) (id, ext string, err error) {
	dot := strings.IndexByte(segment, '.')
	if dot <= 0 || dot == len(segment)-1 {
		return "", "", fmt.Errorf("%w: %q is not <hash>.<extension>", ErrMalformedID, segment)
	}
	id, err = ParseID(segment[:dot])
	if err != nil {
		return "", "", err
	}
	return id, NormalizeExtension(segment[dot+1:]), nil
}
