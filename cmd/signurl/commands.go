package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/objectkey"
	"github.com/tendant/signed-upload/pkg/signedurl/presigned"
	"github.com/tendant/signed-upload/pkg/signedurl/uploads"
)

type requestFlags struct {
	method      string
	contentType string
	expires     int
}

func (f *requestFlags) register(cmd *cobra.Command, defaultMethod string) {
	cmd.Flags().StringVarP(&f.method, "method", "X", defaultMethod, "HTTP method the URL authorizes")
	cmd.Flags().StringVarP(&f.contentType, "content-type", "t", "", "content type to sign (default from configuration for PUT/POST)")
	cmd.Flags().IntVarP(&f.expires, "expires", "e", 0, "lifetime in minutes (default from configuration, max 10080)")
}

// signingRequest applies configuration defaults to the flags for key.
func (f *requestFlags) signingRequest(cmd *cobra.Command, cfg *config.ServerConfig, key string) (signedurl.SigningRequest, error) {
	cleaned, err := objectkey.Clean(key)
	if err != nil {
		return signedurl.SigningRequest{}, err
	}

	method := strings.ToUpper(f.method)
	contentType := f.contentType
	if contentType == "" && (method == http.MethodPut || method == http.MethodPost) {
		contentType = cfg.DefaultContentType
	}

	var requested *int
	if cmd.Flags().Changed("expires") {
		requested = &f.expires
	}
	expires := signedurl.LifetimeOrDefault(requested, cfg.DefaultExpiresMinutes)

	return signedurl.SigningRequest{
		Method:          method,
		Bucket:          cfg.Bucket,
		ObjectKey:       cleaned,
		ContentType:     contentType,
		LifetimeMinutes: expires,
		SigningIdentity: cfg.ServiceAccountEmail,
	}, nil
}

// NewSignCommand creates the sign command
func NewSignCommand(app *App, flags *globalFlags) *cobra.Command {
	var rf requestFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sign <object-key>",
		Short: "Print a signed URL for an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			assembler, cfg, err := app.newAssembler(ctx, flags)
			if err != nil {
				return err
			}

			req, err := rf.signingRequest(cmd, cfg, args[0])
			if err != nil {
				return err
			}

			signed, err := assembler.SignURL(ctx, req)
			if err != nil {
				return fmt.Errorf("signing failed: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(app.Out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(signed)
			}
			fmt.Fprintln(app.Out, signed.URL)
			return nil
		},
	}

	rf.register(cmd, http.MethodPut)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

// NewUploadCommand creates the upload command
func NewUploadCommand(app *App, flags *globalFlags) *cobra.Command {
	var key, contentType string
	var expires int

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Sign a PUT URL and upload a file through it",
		Long: `Upload signs a PUT URL for the file and sends the file with the signed
headers. Without --key the object key is generated from the configured prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filePath := args[0]

			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", filePath)
			}

			assembler, cfg, err := app.newAssembler(ctx, flags)
			if err != nil {
				return err
			}

			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(filePath))
			}
			req := uploads.Request{Filename: key}
			if contentType != "" {
				req.ContentType = uploads.Some(contentType)
			}
			if cmd.Flags().Changed("expires") {
				req.ExpiresMinutes = &expires
			}

			signed, err := uploads.NewIssuer(assembler, cfg).Issue(ctx, req)
			if err != nil {
				return fmt.Errorf("signing failed: %w", err)
			}

			if flags.verbose {
				fmt.Fprintf(app.Err, "Uploading %s (%d bytes) to %s\n", filePath, info.Size(), signed.ObjectKey)
			}

			start := time.Now()
			body := io.NewSectionReader(f, 0, info.Size())
			if err := app.Uploader.Upload(ctx, signed, body); err != nil {
				if errors.Is(err, presigned.ErrRejected) {
					return fmt.Errorf("storage rejected the upload: %w", err)
				}
				return fmt.Errorf("upload failed: %w", err)
			}

			fmt.Fprintf(app.Out, "Upload successful!\n")
			fmt.Fprintf(app.Out, "Object: %s\n", signed.ObjectKey)
			fmt.Fprintf(app.Out, "Content-Type: %s\n", signed.ContentType)
			fmt.Fprintf(app.Out, "Duration: %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "object key (default: generated)")
	cmd.Flags().StringVarP(&contentType, "content-type", "t", "", "content type (default: from file extension, then configuration)")
	cmd.Flags().IntVarP(&expires, "expires", "e", 0, "URL lifetime in minutes")
	return cmd
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(app *App, flags *globalFlags) *cobra.Command {
	var rf requestFlags
	var at string

	cmd := &cobra.Command{
		Use:   "inspect <object-key>",
		Short: "Show the canonical request and string-to-sign without signing",
		Long: `Inspect prints what would be sent to the remote signer. Comparing this
output with the canonical request in a SignatureDoesNotMatch error pinpoints
which part of a URL differs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// never called; Prepare stops before signing
			noop := signedurl.SignerFunc(func(ctx context.Context, identity string, message []byte) ([]byte, error) {
				return nil, errors.New("inspect does not sign")
			})
			assembler, err := signedurl.New(noop, cfg.AssemblerOptions(cfg.Log.NewLogger(app.Err))...)
			if err != nil {
				return err
			}

			req, err := rf.signingRequest(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			if at != "" {
				if req.IssuedAt, err = time.Parse(signedurl.TimeFormat, at); err != nil {
					return fmt.Errorf("invalid --at %q, want %s: %w", at, signedurl.TimeFormat, err)
				}
			}

			p, err := assembler.Prepare(req)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.Out, "--- canonical request ---")
			fmt.Fprintln(app.Out, p.CanonicalRequest.String())
			fmt.Fprintln(app.Out, "--- string to sign ---")
			fmt.Fprintln(app.Out, p.StringToSign.String())
			fmt.Fprintf(app.Out, "--- expires at ---\n%s\n", p.ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}

	rf.register(cmd, http.MethodPut)
	cmd.Flags().StringVar(&at, "at", "", "signing time as YYYYMMDDTHHMMSSZ (default: now)")
	return cmd
}

// NewEnvCommand lists supported environment variables
func NewEnvCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List supported environment variables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			config.Usage(app.Out)
		},
	}
}
