// Package uploads turns client upload requests into signed PUT URLs using
// service-level defaults: bucket, signing identity, content type, lifetime
// and object key generation. The HTTP API, MCP tool and CLI share it.
package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/objectkey"
)

// URLSigner issues signed URLs. *signedurl.Assembler implements it.
type URLSigner interface {
	SignURL(ctx context.Context, req signedurl.SigningRequest) (*signedurl.SignedURL, error)
}

// FallbackContentType is signed when a client sends an empty or null
// content type.
const FallbackContentType = "application/octet-stream"

// RetryAfter is advertised to clients when the signer is unavailable.
const RetryAfter = 5 * time.Second

// Request is what a client asks for. Every field is optional.
type Request struct {
	Filename       string         `json:"filename,omitempty"`
	ContentType    OptionalString `json:"content_type"`
	ExpiresMinutes *int           `json:"expires_minutes,omitempty"`
}

// OptionalString is a JSON string that remembers whether it was present,
// so an omitted field and an explicit null or "" can be told apart.
type OptionalString struct {
	Value   string
	Present bool
}

// Some returns a present OptionalString.
func Some(v string) OptionalString {
	return OptionalString{Value: v, Present: true}
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Present {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Issuer applies defaults to a Request and signs it.
type Issuer struct {
	signer             URLSigner
	bucket             string
	identity           string
	defaultContentType string
	defaultMinutes     int
	keys               objectkey.Generator
}

// NewIssuer creates an Issuer from the service configuration.
func NewIssuer(signer URLSigner, cfg *config.ServerConfig) *Issuer {
	return &Issuer{
		signer:             signer,
		bucket:             cfg.Bucket,
		identity:           cfg.ServiceAccountEmail,
		defaultContentType: cfg.DefaultContentType,
		defaultMinutes:     cfg.DefaultExpiresMinutes,
		keys:               cfg.KeyGenerator(),
	}
}

// Bucket returns the bucket URLs are issued for.
func (i *Issuer) Bucket() string { return i.bucket }

// Identity returns the service account URLs are signed as.
func (i *Issuer) Identity() string { return i.identity }

// SigningRequest resolves req into the request handed to the signer.
// A filename is used verbatim as the object key after cleaning; without
// one a key is generated from the content type. An omitted content type
// takes the configured default, an empty or null one FallbackContentType.
func (i *Issuer) SigningRequest(req Request) (signedurl.SigningRequest, error) {
	contentType := i.defaultContentType
	if req.ContentType.Present {
		contentType = strings.TrimSpace(req.ContentType.Value)
		if contentType == "" {
			contentType = FallbackContentType
		}
	}

	minutes := signedurl.LifetimeOrDefault(req.ExpiresMinutes, i.defaultMinutes)

	var key string
	if strings.TrimSpace(req.Filename) != "" {
		cleaned, err := objectkey.Clean(req.Filename)
		if err != nil {
			return signedurl.SigningRequest{}, &signedurl.ValidationError{
				Field:   "filename",
				Message: err.Error(),
				Err:     err,
			}
		}
		key = cleaned
	} else {
		key = objectkey.New(i.keys, &objectkey.KeyMetadata{ContentType: contentType})
	}

	return signedurl.SigningRequest{
		Method:          http.MethodPut,
		Bucket:          i.bucket,
		ObjectKey:       key,
		ContentType:     contentType,
		LifetimeMinutes: minutes,
		SigningIdentity: i.identity,
	}, nil
}

// Issue signs a PUT URL for req.
func (i *Issuer) Issue(ctx context.Context, req Request) (*signedurl.SignedURL, error) {
	sr, err := i.SigningRequest(req)
	if err != nil {
		return nil, err
	}
	return i.signer.SignURL(ctx, sr)
}

// StatusCode maps an Issue error to the HTTP status reported to clients.
// A signing identity the signer does not know is an upstream failure (502);
// a refused one is 403.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case signedurl.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, signedurl.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, signedurl.ErrInvalidIdentity):
		return http.StatusBadGateway
	case unavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// ErrorCode is the machine-readable code paired with StatusCode. It is
// empty for a nil error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case signedurl.IsValidationError(err):
		return "invalid_request"
	case errors.Is(err, signedurl.ErrAuthorizationDenied):
		return "authorization_failed"
	case errors.Is(err, signedurl.ErrInvalidIdentity):
		return "invalid_identity"
	case unavailable(err):
		return "signer_unavailable"
	default:
		return "signing_failed"
	}
}

// RetryAfterSeconds returns the Retry-After header value for err, or ""
// when retrying would not help.
func RetryAfterSeconds(err error) string {
	if StatusCode(err) != http.StatusServiceUnavailable {
		return ""
	}
	return strconv.Itoa(int(RetryAfter / time.Second))
}

func unavailable(err error) bool {
	return signedurl.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}
