package signedurl

// GOOG4 signing constants.
const (
	// Algorithm is the V4 RSA signing algorithm identifier.
	Algorithm = "GOOG4-RSA-SHA256"

	// UnsignedPayload is the payload hash sentinel. The body of an upload is
	// not known when the URL is issued.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// ScopeRegion is the region component of the credential scope.
	ScopeRegion = "auto"

	// ScopeService is the service component of the credential scope.
	ScopeService = "storage"

	// ScopeTerminator closes every credential scope.
	ScopeTerminator = "goog4_request"

	// DefaultHost is the storage endpoint used for path-style URLs.
	DefaultHost = "storage.googleapis.com"

	// DefaultScheme is the URL scheme of issued URLs.
	DefaultScheme = "https"
)

// Query parameter keys, in the order they appear in an issued URL.
const (
	AlgorithmKey     = "X-Goog-Algorithm"
	CredentialKey    = "X-Goog-Credential"
	DateKey          = "X-Goog-Date"
	ExpiresKey       = "X-Goog-Expires"
	SignedHeadersKey = "X-Goog-SignedHeaders"
	SignatureKey     = "X-Goog-Signature"
)

// Time layouts.
const (
	// TimeFormat is the ISO 8601 basic timestamp, e.g. 20250101T000000Z.
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat is the credential scope date, e.g. 20250101.
	ShortTimeFormat = "20060102"
)
