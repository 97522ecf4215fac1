// Package archive implements the secured file archive: a single file holding a
// metadata header and a JSON document, masked with a keyed byte transform and
// framed by two markers and an explicit header length.
//
// File layout:
//
//	markerA | ascii(len(header)) | ':' | Mask(markerB | header | body, len(header))
//
// An Archive is a plain value owned by its caller. It holds no open files and
// does no locking; concurrent callers must serialise access themselves.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"
	"unicode/utf8"
)

const separator = ':'

var (
	markerA = []byte{127, 76, 69, 71, 82}
	markerB = []byte{127, 85, 69, 97, 127}
)

// State tracks where an archive's in-memory contents came from.
type State int

const (
	// StateFresh is an archive built by New that has never been saved.
	StateFresh State = iota

	// StatePersisted is an archive whose contents were written by Save.
	StatePersisted

	// StateLoaded is an archive decoded from disk.
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StatePersisted:
		return "persisted"
	case StateLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options controls how an archive is loaded and persisted.
type Options struct {
	// AutoSave makes every Set write the archive to disk.
	AutoSave bool

	// Recovery decides what happens when the stored document cannot be parsed.
	Recovery Recovery

	// Exit terminates the process on an unrecoverable body. Defaults to os.Exit.
	Exit func(code int)

	// Now supplies creation timestamps for fresh archives. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Archive is a file-backed header and document pair.
type Archive struct {
	Header Header
	Body   Body

	path            string
	expectedVersion string
	opts            Options
	state           State
}

// New builds a fresh archive targeting path. Nothing is written until Save.
func New(path, version string, opts Options) *Archive {
	return &Archive{
		Header:          NewHeader(version, opts.now()),
		Body:            NewBody(),
		path:            path,
		expectedVersion: version,
		opts:            opts,
		state:           StateFresh,
	}
}

// Path returns the file the archive is saved to.
func (a *Archive) Path() string {
	return a.path
}

// State reports whether the archive is fresh, persisted or loaded.
func (a *Archive) State() State {
	return a.state
}

// ExpectedVersion returns the version the caller asked for when creating or
// loading the archive. The stored version is in Header.Version.
func (a *Archive) ExpectedVersion() string {
	return a.expectedVersion
}

// AutoSave reports whether Set persists immediately.
func (a *Archive) AutoSave() bool {
	return a.opts.AutoSave
}

// Encode returns the framed, masked bytes of the archive.
func (a *Archive) Encode() ([]byte, error) {
	if err := a.Header.Validate(); err != nil {
		return nil, err
	}
	header := a.Header.Encode()
	body, err := a.Body.Encode()
	if err != nil {
		return nil, err
	}

	key := len(header)

	region := make([]byte, 0, len(markerB)+len(header)+len(body))
	region = append(region, markerB...)
	region = append(region, header...)
	region = append(region, body...)
	Mask(region, key)

	prefix := strconv.Itoa(key)
	out := make([]byte, 0, len(markerA)+len(prefix)+1+len(region))
	out = append(out, markerA...)
	out = append(out, prefix...)
	out = append(out, separator)
	out = append(out, region...)
	return out, nil
}

// Save writes the archive to its path in a single write, creating or
// truncating the file.
func (a *Archive) Save() error {
	data, err := a.Encode()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening archive %s for writing: %w", a.path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing archive %s: %w", a.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing archive %s: %w", a.path, err)
	}

	a.state = StatePersisted
	return nil
}

// Decode validates the framing of raw, unmasks it and decodes header and body.
// raw is not modified. With ResetCorruptBody, an unparseable body yields an
// empty document and an error wrapping ErrBodyReset; the header is still valid.
func Decode(raw []byte, opts Options) (Header, Body, error) {
	if !bytes.HasPrefix(raw, markerA) {
		return Header{}, Body{}, fmt.Errorf("%w: leading marker mismatch", ErrUnsafeArchive)
	}

	rest := raw[len(markerA):]
	sep := bytes.IndexByte(rest, separator)
	if sep < 0 {
		return Header{}, Body{}, fmt.Errorf("%w: missing header length separator", ErrInvalidArchive)
	}
	headerLen, err := strconv.Atoi(string(rest[:sep]))
	if err != nil || headerLen < 0 {
		return Header{}, Body{}, fmt.Errorf("%w: malformed header length %q", ErrInvalidArchive, rest[:sep])
	}

	region := bytes.Clone(rest[sep+1:])
	Unmask(region, headerLen)
	if !bytes.HasPrefix(region, markerB) {
		return Header{}, Body{}, fmt.Errorf("%w: inner marker mismatch", ErrUnsafeArchive)
	}

	payload := region[len(markerB):]
	if headerLen > len(payload) {
		return Header{}, Body{}, fmt.Errorf("%w: header length %d exceeds payload of %d bytes", ErrInvalidArchive, headerLen, len(payload))
	}
	headerRaw, bodyRaw := payload[:headerLen], payload[headerLen:]
	if !utf8.Valid(headerRaw) {
		return Header{}, Body{}, fmt.Errorf("%w: header", ErrInvalidEncoding)
	}
	if !utf8.Valid(bodyRaw) {
		return Header{}, Body{}, fmt.Errorf("%w: body", ErrInvalidEncoding)
	}

	header := DecodeHeader(string(headerRaw))
	body, err := DecodeBody(string(bodyRaw), opts)
	return header, body, err
}

// Load reads and decodes the archive at path. The version argument is kept as
// the caller's expectation; the stored header is returned unchanged.
//
// When the body is reset under ResetCorruptBody, Load returns both the archive
// and an error wrapping ErrBodyReset so the caller can decide to re-save it.
func Load(path, version string, opts Options) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	header, body, err := Decode(raw, opts)
	if err != nil && !errors.Is(err, ErrBodyReset) {
		return nil, err
	}

	return &Archive{
		Header:          header,
		Body:            body,
		path:            path,
		expectedVersion: version,
		opts:            opts,
		state:           StateLoaded,
	}, err
}

// Origin describes the outcome of TryLoad.
type Origin int

const (
	// OriginLoaded means the file was decoded cleanly.
	OriginLoaded Origin = iota

	// OriginBodyReset means the framing was valid but the document could not
	// be parsed and was replaced with an empty object.
	OriginBodyReset

	// OriginFresh means no file existed at the path.
	OriginFresh

	// OriginCorrupt means a file existed but could not be loaded. The returned
	// archive is fresh and the file on disk is left untouched.
	OriginCorrupt
)

func (o Origin) String() string {
	switch o {
	case OriginLoaded:
		return "loaded"
	case OriginBodyReset:
		return "body-reset"
	case OriginFresh:
		return "fresh"
	case OriginCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// TryLoad loads the archive at path and falls back to a fresh archive on any
// failure. It never writes. The Origin tells the caller which case applied;
// the error is the load failure for OriginBodyReset, OriginFresh and
// OriginCorrupt, and nil for OriginLoaded.
func TryLoad(path, version string, opts Options) (*Archive, Origin, error) {
	a, err := Load(path, version, opts)
	switch {
	case err == nil:
		return a, OriginLoaded, nil
	case errors.Is(err, ErrBodyReset):
		return a, OriginBodyReset, err
	case errors.Is(err, fs.ErrNotExist):
		return New(path, version, opts), OriginFresh, err
	default:
		return New(path, version, opts), OriginCorrupt, err
	}
}

// Set stores value under key in the document. The value is normalised through
// JSON. With auto-save enabled the archive is written immediately and a
// failure is reported as ErrCannotWrite.
func (a *Archive) Set(key string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}

	switch doc := a.Body.Data.(type) {
	case map[string]any:
		doc[key] = v
	case nil:
		a.Body.Data = map[string]any{key: v}
	default:
		return fmt.Errorf("setting %q: %w", key, ErrNotObject)
	}

	if !a.opts.AutoSave {
		return nil
	}
	if err := a.Save(); err != nil {
		return fmt.Errorf("%w: %w", ErrCannotWrite, err)
	}
	return nil
}

// Get returns the value stored under key, or nil when it is absent or the
// document is not an object.
func (a *Archive) Get(key string) any {
	doc, ok := a.Body.Data.(map[string]any)
	if !ok {
		return nil
	}
	return doc[key]
}

// GetString returns the value under key when it is a string.
func (a *Archive) GetString(key string) (string, bool) {
	s, ok := a.Get(key).(string)
	return s, ok
}

// Keys returns the top-level keys of an object document.
func (a *Archive) Keys() []string {
	doc, ok := a.Body.Data.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	return keys
}
