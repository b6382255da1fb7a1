package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
)

type recordingSigner struct {
	last signedurl.SigningRequest
	err  error
}

func (s *recordingSigner) SignURL(ctx context.Context, req signedurl.SigningRequest) (*signedurl.SignedURL, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &signedurl.SignedURL{URL: "https://example.test/" + req.ObjectKey, Method: req.Method, ObjectKey: req.ObjectKey}, nil
}

func newIssuer(t *testing.T, signer URLSigner) *Issuer {
	t.Helper()
	cfg, err := config.Load(config.WithBucket("b1"), config.WithServiceAccount("svc@proj.iam"))
	require.NoError(t, err)
	return NewIssuer(signer, cfg)
}

func intPtr(v int) *int { return &v }

func TestIssueDefaults(t *testing.T) {
	signer := &recordingSigner{}
	issuer := newIssuer(t, signer)

	signed, err := issuer.Issue(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, signer.last.Method)
	assert.Equal(t, "b1", signer.last.Bucket)
	assert.Equal(t, "svc@proj.iam", signer.last.SigningIdentity)
	assert.Equal(t, "image/jpeg", signer.last.ContentType)
	assert.Equal(t, 15, signer.last.LifetimeMinutes)
	assert.Regexp(t, regexp.MustCompile(`^uploads/[0-9a-f]{32}\.jpg$`), signer.last.ObjectKey)
	assert.Equal(t, signer.last.ObjectKey, signed.ObjectKey)
	assert.Equal(t, "b1", issuer.Bucket())
	assert.Equal(t, "svc@proj.iam", issuer.Identity())
}

func TestIssueExplicitFields(t *testing.T) {
	signer := &recordingSigner{}
	issuer := newIssuer(t, signer)

	_, err := issuer.Issue(context.Background(), Request{
		Filename:       "/avatars/me.png",
		ContentType:    Some("image/png"),
		ExpiresMinutes: intPtr(5),
	})
	require.NoError(t, err)

	assert.Equal(t, "avatars/me.png", signer.last.ObjectKey)
	assert.Equal(t, "image/png", signer.last.ContentType)
	assert.Equal(t, 5, signer.last.LifetimeMinutes)
}

func TestIssueGeneratedKeyFollowsContentType(t *testing.T) {
	signer := &recordingSigner{}
	issuer := newIssuer(t, signer)

	_, err := issuer.Issue(context.Background(), Request{ContentType: Some("application/pdf")})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`\.pdf$`), signer.last.ObjectKey)
}

func TestIssueZeroMinutesIsPassedThrough(t *testing.T) {
	// zero is not replaced by the default; the assembler rejects it
	signer := &recordingSigner{}
	issuer := newIssuer(t, signer)

	sr, err := issuer.SigningRequest(Request{ExpiresMinutes: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, sr.LifetimeMinutes)
	assert.True(t, signedurl.IsValidationError(sr.Validate()))
}

func TestIssueBadFilename(t *testing.T) {
	signer := &recordingSigner{}
	issuer := newIssuer(t, signer)

	_, err := issuer.Issue(context.Background(), Request{Filename: "../etc/passwd"})
	require.Error(t, err)
	assert.True(t, signedurl.IsValidationError(err))
	assert.Equal(t, "", signer.last.ObjectKey)

	var ve *signedurl.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "filename", ve.Field)
}

func TestIssueUsesConfiguredLifetime(t *testing.T) {
	cfg, err := config.Load(
		config.WithBucket("b1"),
		config.WithServiceAccount("svc@proj.iam"),
		config.WithDefaults("image/jpeg", 30),
	)
	require.NoError(t, err)
	signer := &recordingSigner{}

	sr, err := NewIssuer(signer, cfg).SigningRequest(Request{})
	require.NoError(t, err)
	assert.Equal(t, 30, sr.LifetimeMinutes)
}

func TestIssueContentTypeDefaults(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"omitted", `{}`, "image/jpeg"},
		{"null", `{"content_type":null}`, FallbackContentType},
		{"empty", `{"content_type":""}`, FallbackContentType},
		{"blank", `{"content_type":"  "}`, FallbackContentType},
		{"explicit", `{"content_type":"text/plain"}`, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			sr, err := newIssuer(t, &recordingSigner{}).SigningRequest(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sr.ContentType)
		})
	}
}

func TestOptionalStringMarshal(t *testing.T) {
	data, err := json.Marshal(Request{ContentType: Some("image/png")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content_type":"image/png"}`, string(data))

	data, err = json.Marshal(Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content_type":null}`, string(data))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err        error
		status     int
		code       string
		retryAfter string
	}{
		{nil, http.StatusOK, "", ""},
		{&signedurl.ValidationError{Field: "lifetime", Message: "x"}, http.StatusBadRequest, "invalid_request", ""},
		{&signedurl.SignerError{Err: signedurl.ErrAuthorizationDenied}, http.StatusForbidden, "authorization_failed", ""},
		{&signedurl.SignerError{Err: signedurl.ErrInvalidIdentity}, http.StatusBadGateway, "invalid_identity", ""},
		{&signedurl.SignerError{Err: signedurl.ErrTransientUnavailable}, http.StatusServiceUnavailable, "signer_unavailable", "5"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "signer_unavailable", "5"},
		{&signedurl.SignerError{Err: signedurl.ErrEmptySignature}, http.StatusBadGateway, "signing_failed", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusCode(tt.err), "%v", tt.err)
		assert.Equal(t, tt.code, ErrorCode(tt.err), "%v", tt.err)
		assert.Equal(t, tt.retryAfter, RetryAfterSeconds(tt.err), "%v", tt.err)
	}
}
