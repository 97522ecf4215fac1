package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// FatalExitCode is the process exit status used when a body cannot be parsed
// and recovery is disabled.
const FatalExitCode = 2

// Recovery selects what happens when the stored document cannot be parsed.
type Recovery int

const (
	// AbortOnCorruptBody terminates the process without unwinding.
	AbortOnCorruptBody Recovery = iota

	// ResetCorruptBody substitutes an empty object and reports ErrBodyReset.
	ResetCorruptBody
)

// Body holds the archive document: any JSON value. Objects decode as
// map[string]any and numbers as json.Number.
type Body struct {
	Data any
}

// NewBody returns an empty object document.
func NewBody() Body {
	return Body{Data: map[string]any{}}
}

// Encode renders the document as compact JSON with sorted object keys.
func (b Body) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b.Data); err != nil {
		return "", fmt.Errorf("encoding archive body: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeBody parses a document. When parsing fails the outcome depends on
// opts.Recovery: ResetCorruptBody returns an empty object with an error
// wrapping ErrBodyReset, AbortOnCorruptBody exits the process with
// FatalExitCode.
func DecodeBody(text string, opts Options) (Body, error) {
	data, err := decodeJSON(text)
	if err == nil {
		return Body{Data: data}, nil
	}

	if opts.Recovery == ResetCorruptBody {
		return NewBody(), fmt.Errorf("%w: %w", ErrBodyReset, err)
	}

	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(FatalExitCode)

	return Body{}, fmt.Errorf("%w: %w", ErrBodyFatal, err)
}

// decodeJSON parses exactly one JSON value from text.
func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after document")
	}
	return v, nil
}

// normalize converts an arbitrary Go value into the representation produced
// by decoding, so values read back after Set match values read after Load.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return decodeJSON(string(data))
}
