package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/presigned"
)

func stubSigner(sig []byte, err error) func(context.Context, *config.ServerConfig, *slog.Logger) (signedurl.RemoteSigner, error) {
	return func(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (signedurl.RemoteSigner, error) {
		return signedurl.SignerFunc(func(ctx context.Context, identity string, message []byte) ([]byte, error) {
			return sig, err
		}), nil
	}
}

func run(t *testing.T, app *App, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app.Out = &out
	app.Err = &errOut

	cmd := NewRootCommand(app)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSignCommand(t *testing.T) {
	app := &App{BuildSigner: stubSigner([]byte{0xca, 0xfe}, nil)}

	out, _, err := run(t, app, "sign", "photos/a b.jpg", "--bucket", "b1", "--identity", "svc@proj.iam", "--expires", "10")
	require.NoError(t, err)

	line := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(line, "https://storage.googleapis.com/b1/photos/a%20b.jpg?X-Goog-Algorithm=GOOG4-RSA-SHA256&"), line)
	assert.Contains(t, line, "X-Goog-Expires=600")
	assert.Contains(t, line, "X-Goog-SignedHeaders=content-type%3Bhost")
	assert.True(t, strings.HasSuffix(line, "&X-Goog-Signature=cafe"))
}

func TestSignCommandGetJSON(t *testing.T) {
	app := &App{BuildSigner: stubSigner([]byte{0x01}, nil)}

	out, _, err := run(t, app, "sign", "a.jpg", "-X", "GET", "--json", "--bucket", "b1", "--identity", "svc@proj.iam")
	require.NoError(t, err)
	assert.Contains(t, out, `"method": "GET"`)
	assert.Contains(t, out, `"blob_name": "a.jpg"`)
	assert.Contains(t, out, "X-Goog-SignedHeaders=host&")
	assert.NotContains(t, out, `"content_type"`)
}

func TestSignCommandErrors(t *testing.T) {
	denied := &signedurl.SignerError{Identity: "svc@proj.iam", StatusCode: 403, Err: signedurl.ErrAuthorizationDenied}

	tests := []struct {
		name string
		app  *App
		args []string
		want string
	}{
		{"missing bucket", &App{BuildSigner: stubSigner([]byte{1}, nil)}, []string{"sign", "a.jpg", "--identity", "svc@proj.iam"}, "bucket"},
		{"zero expiry", &App{BuildSigner: stubSigner([]byte{1}, nil)}, []string{"sign", "a.jpg", "--bucket", "b1", "--identity", "svc@proj.iam", "--expires", "0"}, "lifetime"},
		{"bad key", &App{BuildSigner: stubSigner([]byte{1}, nil)}, []string{"sign", "../a.jpg", "--bucket", "b1", "--identity", "svc@proj.iam"}, "dot segment"},
		{"denied", &App{BuildSigner: stubSigner(nil, denied)}, []string{"sign", "a.jpg", "--bucket", "b1", "--identity", "svc@proj.iam"}, "denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UPLOAD_BUCKET", "")
			t.Setenv("SERVICE_ACCOUNT_EMAIL", "")

			out, _, err := run(t, tt.app, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, out)
		})
	}
}

func TestInspectCommand(t *testing.T) {
	var signed int32
	app := &App{BuildSigner: func(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (signedurl.RemoteSigner, error) {
		atomic.AddInt32(&signed, 1)
		return nil, nil
	}}

	out, _, err := run(t, app, "inspect", "a.jpg",
		"--bucket", "b1", "--identity", "svc@proj.iam",
		"--content-type", "image/jpeg", "--expires", "15", "--at", "20250101T000000Z")
	require.NoError(t, err)

	assert.Contains(t, out, "PUT\n/b1/a.jpg\n")
	assert.Contains(t, out, "content-type:image/jpeg\nhost:storage.googleapis.com\n\ncontent-type;host\nUNSIGNED-PAYLOAD")
	assert.Contains(t, out, "GOOG4-RSA-SHA256\n20250101T000000Z\n20250101/auto/storage/goog4_request\n")
	assert.Contains(t, out, "2025-01-01T00:15:00Z")
	assert.Zero(t, atomic.LoadInt32(&signed))
}

func TestUploadCommand(t *testing.T) {
	var received []byte
	var contentType, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		contentType = r.Header.Get("Content-Type")
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello upload"), 0o600))

	app := &App{
		BuildSigner: stubSigner([]byte{0xab}, nil),
		Uploader:    presigned.NewClient(presigned.WithHTTPClient(srv.Client())),
	}
	out, _, err := run(t, app, "upload", file, "--key", "docs/notes.txt",
		"--bucket", "b1", "--identity", "svc@proj.iam", "--endpoint", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "Upload successful!")
	assert.Contains(t, out, "Object: docs/notes.txt")
	assert.Equal(t, "hello upload", string(received))
	assert.True(t, strings.HasPrefix(contentType, "text/plain"), contentType)
	assert.Equal(t, "/b1/docs/notes.txt", path)
}

func TestUploadCommandRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(file, []byte{1, 2, 3}, 0o600))

	app := &App{
		BuildSigner: stubSigner([]byte{0xab}, nil),
		Uploader:    presigned.NewClient(presigned.WithHTTPClient(srv.Client())),
	}
	_, _, err := run(t, app, "upload", file, "--bucket", "b1", "--identity", "svc@proj.iam", "--endpoint", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage rejected the upload")
}

func TestUploadCommandMissingFile(t *testing.T) {
	_, _, err := run(t, &App{BuildSigner: stubSigner([]byte{1}, nil)}, "upload", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestEnvCommand(t *testing.T) {
	out, _, err := run(t, &App{}, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "SERVICE_ACCOUNT_EMAIL")
}
