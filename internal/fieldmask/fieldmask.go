// Package fieldmask obfuscates short string values, such as a stored
// credential, independently of any file framing.
//
// For a string of byte length L, every byte c with c >= L+3 is shifted down by
// L-3 and every other byte is left alone. Each resulting byte is emitted as the
// code point of the same value, so a masked string is always valid UTF-8 and
// survives a JSON document. The transform is only reversible for strings where
// every byte passes that guard; see Eligible.
package fieldmask

import (
	"strings"
	"unicode/utf8"
)

// guard returns the smallest byte value that Encrypt shifts for a string of
// length n. ok is false when no byte value can qualify.
func guard(n int) (floor byte, ok bool) {
	if n+3 > 255 {
		return 0, false
	}
	return byte(n + 3), true
}

// Encrypt masks s.
func Encrypt(s string) string {
	n := len(s)
	floor, ok := guard(n)
	shift := byte(n - 3)

	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		c := s[i]
		if ok && c >= floor {
			c -= shift
		}
		b.WriteRune(rune(c))
	}
	return b.String()
}

// Decrypt reverses Encrypt. A byte is restored only when the restored value
// would itself have been shifted by Encrypt; otherwise it is passed through.
func Decrypt(s string) string {
	units := byteUnits(s)
	floor, ok := guard(len(units))
	if ok {
		shift := byte(len(units) - 3)
		for i, e := range units {
			if c := e + shift; c >= floor {
				units[i] = c
			}
		}
	}
	return string(units)
}

// byteUnits turns the one code point per byte form produced by Encrypt back
// into bytes. Code points above 0xFF and invalid UTF-8 bytes are kept as they
// are encoded in s.
func byteUnits(s string) []byte {
	units := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			units = append(units, s[i])
		case r <= 0xFF:
			units = append(units, byte(r))
		default:
			units = append(units, s[i:i+size]...)
		}
		i += size
	}
	return units
}

// Eligible reports whether Decrypt(Encrypt(s)) == s is guaranteed, which holds
// when every byte of s is at least len(s)+3. Strings too long for any byte to
// qualify are never shifted and are always eligible.
func Eligible(s string) bool {
	floor, ok := guard(len(s))
	if !ok {
		return true
	}
	for i := 0; i < len(s); i++ {
		if s[i] < floor {
			return false
		}
	}
	return true
}
