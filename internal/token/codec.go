// Package token implements the link secrets used by account confirmation
// and password reset, plus the reversible identifier codec they travel with.
package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrDecode is returned for any identifier that cannot be decoded.
var ErrDecode = errors.New("malformed encoded identifier")

// EncodeID turns an account identifier into a URL-safe path segment.
// This is obfuscation only; it carries no confidentiality.
func EncodeID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeID reverses EncodeID.
func DecodeID(encoded string) (string, error) {
	// The decoder skips CR and LF, so they would let several spellings
	// through for the same identifier.
	if encoded == "" || strings.ContainsAny(encoded, "=\r\n") {
		return "", ErrDecode
	}

	raw, err := base64.RawURLEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return "", ErrDecode
	}
	if len(raw) == 0 || !utf8.Valid(raw) {
		return "", ErrDecode
	}

	return string(raw), nil
}
