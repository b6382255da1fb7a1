package signedurl

import (
	"encoding/hex"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether b falls outside the RFC 3986 unreserved set.
func shouldEscape(b byte) bool {
	switch {
	case 'A' <= b && b <= 'Z', 'a' <= b && b <= 'z', '0' <= b && b <= '9':
		return false
	case b == '-', b == '.', b == '_', b == '~':
		return false
	}
	return true
}

func escape(s string, keepSlash bool) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) && !(keepSlash && s[i] == '/') {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) && !(keepSlash && c == '/') {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// QueryEscape percent-encodes every byte outside the unreserved set,
// including '/', '@', '=' and space (as %20, never '+').
func QueryEscape(s string) string {
	return escape(s, false)
}

// PathEscape percent-encodes an object key for the resource path. Segment
// separators are preserved.
func PathEscape(s string) string {
	return escape(s, true)
}

// EncodeSignature renders raw signature bytes as the lowercase hex string
// carried in X-Goog-Signature.
func EncodeSignature(sig []byte) string {
	return hex.EncodeToString(sig)
}
