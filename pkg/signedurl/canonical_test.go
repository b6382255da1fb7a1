package signedurl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleTime = NewSigningTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

func exampleRequest() SigningRequest {
	return SigningRequest{
		Method:          "PUT",
		Bucket:          "b1",
		ObjectKey:       "a.jpg",
		ContentType:     "image/jpeg",
		LifetimeMinutes: 15,
		SigningIdentity: "svc@proj.iam",
		IssuedAt:        exampleTime.Time,
	}
}

func TestBuildCanonicalRequest(t *testing.T) {
	c, err := BuildCanonicalRequest(exampleRequest(), exampleTime, 15*time.Minute, DefaultLocation)
	require.NoError(t, err)

	expected := "PUT\n" +
		"/b1/a.jpg\n" +
		"X-Goog-Algorithm=GOOG4-RSA-SHA256" +
		"&X-Goog-Credential=svc%40proj.iam%2F20250101%2Fauto%2Fstorage%2Fgoog4_request" +
		"&X-Goog-Date=20250101T000000Z" +
		"&X-Goog-Expires=900" +
		"&X-Goog-SignedHeaders=content-type%3Bhost\n" +
		"content-type:image/jpeg\n" +
		"host:storage.googleapis.com\n" +
		"\n" +
		"content-type;host\n" +
		"UNSIGNED-PAYLOAD"

	assert.Equal(t, expected, c.String())
	assert.Equal(t, UnsignedPayload, c.PayloadHash)
	assert.Equal(t, "content-type;host", c.SignedHeaders)
}

func TestBuildCanonicalRequestDeterministic(t *testing.T) {
	first, err := BuildCanonicalRequest(exampleRequest(), exampleTime, 15*time.Minute, DefaultLocation)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := BuildCanonicalRequest(exampleRequest(), exampleTime, 15*time.Minute, DefaultLocation)
		require.NoError(t, err)
		assert.Equal(t, first.String(), again.String())
	}
}

func TestBuildCanonicalRequestVirtualHosted(t *testing.T) {
	loc := Location{Scheme: "https", Host: DefaultHost, VirtualHosted: true}
	c, err := BuildCanonicalRequest(exampleRequest(), exampleTime, 15*time.Minute, loc)
	require.NoError(t, err)

	assert.Equal(t, "/a.jpg", c.ResourcePath)
	assert.Equal(t, "b1.storage.googleapis.com", c.Headers["host"])
	assert.Contains(t, c.CanonicalHeaders, "host:b1.storage.googleapis.com\n")
}

func TestBuildCanonicalRequestWithoutContentType(t *testing.T) {
	req := exampleRequest()
	req.ContentType = "   "
	c, err := BuildCanonicalRequest(req, exampleTime, time.Minute, DefaultLocation)
	require.NoError(t, err)

	assert.Equal(t, "host", c.SignedHeaders)
	assert.Equal(t, "host:storage.googleapis.com\n", c.CanonicalHeaders)
	assert.Contains(t, c.QueryString, "X-Goog-SignedHeaders=host")
	assert.Contains(t, c.QueryString, "X-Goog-Expires=60")
}

func TestBuildCanonicalRequestMethod(t *testing.T) {
	tests := []struct {
		method   string
		expected string
		wantErr  bool
	}{
		{"put", "PUT", false},
		{"GET", "GET", false},
		{"delete", "DELETE", false},
		{" head ", "HEAD", false},
		{"PATCH", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := exampleRequest()
			req.Method = tt.method
			c, err := BuildCanonicalRequest(req, exampleTime, time.Minute, DefaultLocation)
			if tt.wantErr {
				assert.True(t, IsValidationError(err), "expected validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Method)
		})
	}
}

func TestBuildCanonicalRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SigningRequest)
		field  string
	}{
		{"empty bucket", func(r *SigningRequest) { r.Bucket = "" }, "bucket"},
		{"slash in bucket", func(r *SigningRequest) { r.Bucket = "a/b" }, "bucket"},
		{"empty key", func(r *SigningRequest) { r.ObjectKey = "" }, "object_key"},
		{"empty identity", func(r *SigningRequest) { r.SigningIdentity = " " }, "signing_identity"},
		{"zero lifetime", func(r *SigningRequest) { r.LifetimeMinutes = 0 }, "lifetime"},
		{"negative lifetime", func(r *SigningRequest) { r.LifetimeMinutes = -1 }, "lifetime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := exampleRequest()
			tt.mutate(&req)
			_, err := BuildCanonicalRequest(req, exampleTime, time.Minute, DefaultLocation)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestBuildCanonicalRequestRejectsSubSecondExpiry(t *testing.T) {
	_, err := BuildCanonicalRequest(exampleRequest(), exampleTime, 500*time.Millisecond, DefaultLocation)
	assert.True(t, IsValidationError(err))
}

func TestObjectKeyEncoding(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"a.jpg", "/b1/a.jpg"},
		{"uploads/2025/a.jpg", "/b1/uploads/2025/a.jpg"},
		{"my file+1.jpg", "/b1/my%20file%2B1.jpg"},
		{"café.png", "/b1/caf%C3%A9.png"},
		{"a?b#c&d=e", "/b1/a%3Fb%23c%26d%3De"},
		{"~user/_x-y.z", "/b1/~user/_x-y.z"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultLocation.PathFor("b1", tt.key))
		})
	}
}

func TestBuildCanonicalHeaders(t *testing.T) {
	canonical, signed := BuildCanonicalHeaders(map[string]string{
		"Host":         " storage.googleapis.com ",
		"Content-Type": "text/plain;   charset=utf-8",
		"X-Goog-Meta":  "a \t b",
	})

	assert.Equal(t,
		"content-type:text/plain; charset=utf-8\n"+
			"host:storage.googleapis.com\n"+
			"x-goog-meta:a b\n",
		canonical)
	assert.Equal(t, "content-type;host;x-goog-meta", signed)
}

func TestEncodeQuery(t *testing.T) {
	t.Run("sorted by encoded key", func(t *testing.T) {
		q := EncodeQuery([]QueryParam{
			{Key: "a-b", Value: "1"},
			{Key: "a", Value: "2"},
			{Key: "B", Value: "3"},
		})
		assert.Equal(t, "B=3&a=2&a-b=1", q)
	})

	t.Run("empty values are kept", func(t *testing.T) {
		assert.Equal(t, "k=&z=1", EncodeQuery([]QueryParam{{Key: "z", Value: "1"}, {Key: "k"}}))
	})

	t.Run("fixed order regardless of input order", func(t *testing.T) {
		q := EncodeQuery([]QueryParam{
			{Key: SignedHeadersKey, Value: "host"},
			{Key: ExpiresKey, Value: "900"},
			{Key: DateKey, Value: "20250101T000000Z"},
			{Key: CredentialKey, Value: "x"},
			{Key: AlgorithmKey, Value: Algorithm},
		})
		assert.Equal(t, "X-Goog-Algorithm=GOOG4-RSA-SHA256&X-Goog-Credential=x"+
			"&X-Goog-Date=20250101T000000Z&X-Goog-Expires=900&X-Goog-SignedHeaders=host", q)
	})
}

func TestQueryEscape(t *testing.T) {
	assert.Equal(t, "a%20b%2Fc%40d%3De~", QueryEscape("a b/c@d=e~"))
	assert.Equal(t, "content-type%3Bhost", QueryEscape("content-type;host"))
	assert.Equal(t, "AZaz09-._~", QueryEscape("AZaz09-._~"))
}
