package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBloat fills the bloat field of fresh headers and stands in for a
	// missing version or bloat when decoding.
	DefaultBloat = "ThisMayBeABigTextOrNot"

	// DataTypeJSON is the payload kind written by New.
	DataTypeJSON = "json"

	// DataTypeRaw is assumed when a decoded header carries no data_type.
	DataTypeRaw = "raw"

	// UnknownPID is the owner_pid written by New.
	UnknownPID = -1
)

// reservedHeaderChars cannot appear in a header value: the text format has no
// escaping, so any of them would shift every following field.
const reservedHeaderChars = "=,{}"

// Header is the fixed-schema metadata record stored in front of the document.
// Timestamps have one-second resolution.
type Header struct {
	DataSize   int64
	Creation   time.Time
	LastEdited time.Time
	Version    string
	Bloat      string
	DataType   string
	OwnerPID   int
}

// NewHeader returns the header of a fresh archive created at now.
func NewHeader(version string, now time.Time) Header {
	now = now.UTC().Truncate(time.Second)
	return Header{
		DataSize:   0,
		Creation:   now,
		LastEdited: now,
		Version:    version,
		Bloat:      DefaultBloat,
		DataType:   DataTypeJSON,
		OwnerPID:   UnknownPID,
	}
}

// Validate reports whether every string field can be encoded without
// corrupting the header text.
func (h Header) Validate() error {
	fields := []struct{ name, value string }{
		{"version", h.Version},
		{"bloat", h.Bloat},
		{"data_type", h.DataType},
	}
	for _, f := range fields {
		if strings.ContainsAny(f.value, reservedHeaderChars) {
			return fmt.Errorf("%w: %s=%q contains one of %q", ErrInvalidHeader, f.name, f.value, reservedHeaderChars)
		}
	}
	return nil
}

// Encode renders the header in its flat text form. Fields are always written
// in the same order.
func (h Header) Encode() string {
	return fmt.Sprintf(
		"{data_size=%d,creation=%d,last_edited=%d,version=%s,bloat=%s,data_type=%s,owner_pid=%d}",
		h.DataSize,
		h.Creation.Unix(),
		h.LastEdited.Unix(),
		h.Version,
		h.Bloat,
		h.DataType,
		h.OwnerPID,
	)
}

// DecodeHeader parses the flat text form. It never fails: missing fields take
// their defaults and malformed numbers decode as zero.
func DecodeHeader(text string) Header {
	fields := scanHeaderFields(text)

	h := Header{
		DataSize:   parseInt(fields, "data_size"),
		Creation:   parseUnix(fields, "creation"),
		LastEdited: parseUnix(fields, "last_edited"),
		Version:    DefaultBloat,
		Bloat:      DefaultBloat,
		DataType:   DataTypeRaw,
		OwnerPID:   int(parseInt(fields, "owner_pid")),
	}
	if v, ok := fields["version"]; ok {
		h.Version = v
	}
	if v, ok := fields["bloat"]; ok {
		h.Bloat = v
	}
	if v, ok := fields["data_type"]; ok {
		h.DataType = v
	}
	return h
}

// scanHeaderFields splits name=value pairs with a two-state scanner. The name
// state runs until '=', the value state until ','. Braces are skipped. The
// trailing pair is flushed at end of input.
func scanHeaderFields(text string) map[string]string {
	fields := make(map[string]string)

	var name, value strings.Builder
	inValue := false

	flush := func() {
		if name.Len() > 0 {
			fields[name.String()] = value.String()
		}
		name.Reset()
		value.Reset()
		inValue = false
	}

	for _, c := range text {
		switch {
		case c == '{' || c == '}':
		case c == '=' && !inValue:
			inValue = true
		case c == ',' && inValue:
			flush()
		case inValue:
			value.WriteRune(c)
		default:
			name.WriteRune(c)
		}
	}
	if inValue {
		flush()
	}

	return fields
}

func parseInt(fields map[string]string, name string) int64 {
	n, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseUnix(fields map[string]string, name string) time.Time {
	return time.Unix(parseInt(fields, name), 0).UTC()
}
