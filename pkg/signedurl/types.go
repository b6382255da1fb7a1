package signedurl

import (
	"net/http"
	"strings"
	"time"
)

// SigningRequest describes the single operation a URL will authorize.
type SigningRequest struct {
	Method          string
	Bucket          string
	ObjectKey       string
	ContentType     string // optional; signed as content-type when set
	LifetimeMinutes int
	SigningIdentity string // service account email the signer acts as

	// IssuedAt is the signing instant. When zero the assembler takes one
	// snapshot of its clock.
	IssuedAt time.Time
}

var supportedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodHead:   {},
	http.MethodPut:    {},
	http.MethodPost:   {},
	http.MethodDelete: {},
}

// Validate checks the fields that must be present before signing.
func (r SigningRequest) Validate() error {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		return invalid("method", "method is required")
	}
	if _, ok := supportedMethods[method]; !ok {
		return invalid("method", "unsupported method %q", r.Method)
	}
	if r.Bucket == "" {
		return invalid("bucket", "bucket name is required")
	}
	if strings.Contains(r.Bucket, "/") {
		return invalid("bucket", "bucket name %q must not contain '/'", r.Bucket)
	}
	if r.ObjectKey == "" {
		return invalid("object_key", "object key is required")
	}
	if strings.TrimSpace(r.SigningIdentity) == "" {
		return invalid("signing_identity", "signing identity email is required")
	}
	if r.LifetimeMinutes <= 0 {
		return invalid("lifetime", "lifetime must be positive, got %d minutes", r.LifetimeMinutes)
	}
	return nil
}

// SignedURL is the terminal artifact handed to an uploader.
type SignedURL struct {
	URL         string      `json:"url"`
	Method      string      `json:"method"`
	ObjectKey   string      `json:"blob_name"`
	ContentType string      `json:"content_type,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Headers     http.Header `json:"headers,omitempty"` // headers the uploader must send
}
