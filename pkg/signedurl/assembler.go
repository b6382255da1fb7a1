package signedurl

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Assembler turns SigningRequests into SignedURLs. It holds no per-request
// state and is safe for concurrent use.
type Assembler struct {
	signer      RemoteSigner
	location    Location
	expiry      ExpiryPolicy
	signTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// New creates an Assembler that delegates signatures to signer
func New(signer RemoteSigner, opts ...Option) (*Assembler, error) {
	if signer == nil {
		return nil, errors.New("signedurl: remote signer is required")
	}

	a := &Assembler{
		signer:      signer,
		location:    DefaultLocation,
		expiry:      DefaultExpiryPolicy,
		signTimeout: DefaultSignTimeout,
		now:         time.Now,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Prepared holds everything derived from a request before it is signed.
type Prepared struct {
	Request          SigningRequest
	Time             SigningTime
	Lifetime         time.Duration
	CanonicalRequest *CanonicalRequest
	StringToSign     *StringToSign
}

// ExpiresAt returns the instant the URL stops being accepted.
func (p *Prepared) ExpiresAt() time.Time {
	return ExpiresAt(p.Time.Time, p.Lifetime)
}

// Prepare validates req and builds its canonical request and string-to-sign
// from a single issuedAt snapshot. It does not contact the signer.
func (a *Assembler) Prepare(req SigningRequest) (*Prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lifetime, err := a.expiry.Lifetime(req.LifetimeMinutes)
	if err != nil {
		return nil, err
	}

	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = a.now()
	}
	t := NewSigningTime(issuedAt)

	canonical, err := BuildCanonicalRequest(req, t, lifetime, a.location)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Request:          req,
		Time:             t,
		Lifetime:         lifetime,
		CanonicalRequest: canonical,
		StringToSign:     BuildStringToSign(canonical, t),
	}, nil
}

// SignURL issues a signed URL for req. It calls the remote signer exactly
// once; signer errors are returned unchanged.
func (a *Assembler) SignURL(ctx context.Context, req SigningRequest) (*SignedURL, error) {
	p, err := a.Prepare(req)
	if err != nil {
		return nil, err
	}

	identity := strings.TrimSpace(req.SigningIdentity)
	logger := a.logger.With(
		"identity", identity,
		"bucket", req.Bucket,
		"object_key", req.ObjectKey,
		"method", p.CanonicalRequest.Method,
	)

	signCtx, cancel := context.WithTimeout(ctx, a.signTimeout)
	defer cancel()

	start := time.Now()
	sig, err := a.signer.Sign(signCtx, identity, p.StringToSign.Bytes())
	if err != nil {
		logger.Warn("remote signing failed", "err", err, "duration", time.Since(start))
		return nil, err
	}
	if len(sig) == 0 {
		logger.Warn("remote signer returned no signature")
		return nil, &SignerError{Identity: identity, Err: ErrEmptySignature}
	}

	signed, err := a.assemble(p, sig)
	if err != nil {
		return nil, err
	}

	logger.Debug("issued signed URL",
		"expires_at", signed.ExpiresAt,
		"signed_headers", p.CanonicalRequest.SignedHeaders,
		"duration", time.Since(start),
	)
	return signed, nil
}

func (a *Assembler) assemble(p *Prepared, sig []byte) (*SignedURL, error) {
	c := p.CanonicalRequest

	var b strings.Builder
	b.WriteString(a.location.scheme())
	b.WriteString("://")
	b.WriteString(c.Headers["host"])
	b.WriteString(c.ResourcePath)
	b.WriteByte('?')
	b.WriteString(c.QueryString)
	b.WriteByte('&')
	b.WriteString(SignatureKey)
	b.WriteByte('=')
	b.WriteString(EncodeSignature(sig))
	raw := b.String()

	if _, err := url.Parse(raw); err != nil {
		return nil, &ValidationError{Message: "assembled URL is malformed", Err: err}
	}

	headers := make(http.Header)
	contentType := c.Headers["content-type"]
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	return &SignedURL{
		URL:         raw,
		Method:      c.Method,
		ObjectKey:   p.Request.ObjectKey,
		ContentType: contentType,
		ExpiresAt:   p.ExpiresAt(),
		Headers:     headers,
	}, nil
}
