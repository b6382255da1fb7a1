package signedurl

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// StringToSign is the text handed to the remote signer.
type StringToSign struct {
	Algorithm              string
	Timestamp              string
	CredentialScope        string
	CanonicalRequestDigest string
}

// String joins the four lines with '\n' and no trailing newline.
func (s *StringToSign) String() string {
	return strings.Join([]string{
		s.Algorithm,
		s.Timestamp,
		s.CredentialScope,
		s.CanonicalRequestDigest,
	}, "\n")
}

// Bytes returns the exact UTF-8 bytes that are signed.
func (s *StringToSign) Bytes() []byte {
	return []byte(s.String())
}

// BuildCredentialScope returns date/auto/storage/goog4_request.
func BuildCredentialScope(t SigningTime) string {
	return strings.Join([]string{
		t.ShortTimeFormat(),
		ScopeRegion,
		ScopeService,
		ScopeTerminator,
	}, "/")
}

// HashCanonicalRequest returns the lowercase hex SHA-256 of the serialized
// canonical request.
func HashCanonicalRequest(c *CanonicalRequest) string {
	sum := sha256.Sum256([]byte(c.String()))
	return hex.EncodeToString(sum[:])
}

// BuildStringToSign wraps the digest of c with the algorithm, timestamp and
// credential scope of t. t must be the instant c was built with.
func BuildStringToSign(c *CanonicalRequest, t SigningTime) *StringToSign {
	return &StringToSign{
		Algorithm:              Algorithm,
		Timestamp:              t.TimeFormat(),
		CredentialScope:        BuildCredentialScope(t),
		CanonicalRequestDigest: HashCanonicalRequest(c),
	}
}
