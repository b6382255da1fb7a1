package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/presigned"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// It's okay if .env doesn't exist
	_ = godotenv.Load(".env")

	rootCmd := NewRootCommand(&App{Out: os.Stdout, Err: os.Stderr})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// App carries the dependencies commands share. Zero fields get production defaults.
type App struct {
	Out io.Writer
	Err io.Writer

	// BuildSigner defaults to the signer selected by configuration
	BuildSigner func(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (signedurl.RemoteSigner, error)

	Uploader *presigned.Client
}

type globalFlags struct {
	configFile string
	verbose    bool
	bucket     string
	identity   string
	endpoint   string
	signer     string
}

func NewRootCommand(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}
	if app.BuildSigner == nil {
		app.BuildSigner = func(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (signedurl.RemoteSigner, error) {
			return cfg.BuildSigner(ctx, logger)
		}
	}
	if app.Uploader == nil {
		app.Uploader = presigned.NewClient()
	}

	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "signurl",
		Short: "Issue V4 signed upload URLs without a private key",
		Long: `signurl issues GOOG4-RSA-SHA256 signed URLs. The signature is produced
remotely (IAM signBlob or AWS KMS), so no private key is ever stored locally.

Configuration comes from the environment (see "signurl env"), an optional
.env file, or --config.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(app.Out)
	rootCmd.SetErr(app.Err)

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (yaml, json, toml or env)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.bucket, "bucket", "", "bucket (overrides UPLOAD_BUCKET)")
	rootCmd.PersistentFlags().StringVar(&flags.identity, "identity", "", "service account email (overrides SERVICE_ACCOUNT_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&flags.endpoint, "endpoint", "", "storage endpoint URL, e.g. http://localhost:4443")
	rootCmd.PersistentFlags().StringVar(&flags.signer, "signer", "", "iam or kms (overrides SIGNER)")

	rootCmd.AddCommand(NewSignCommand(app, flags))
	rootCmd.AddCommand(NewUploadCommand(app, flags))
	rootCmd.AddCommand(NewInspectCommand(app, flags))
	rootCmd.AddCommand(NewEnvCommand(app))

	return rootCmd
}

// loadConfig reads file or environment configuration, then applies flags.
func loadConfig(flags *globalFlags) (*config.ServerConfig, error) {
	opts := []config.Option{config.WithEnv()}
	if flags.configFile != "" {
		opts = []config.Option{config.WithFile(flags.configFile)}
	}
	if flags.bucket != "" {
		opts = append(opts, config.WithBucket(flags.bucket))
	}
	if flags.identity != "" {
		opts = append(opts, config.WithServiceAccount(flags.identity))
	}
	if flags.endpoint != "" {
		u, err := url.Parse(flags.endpoint)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid --endpoint %q", flags.endpoint)
		}
		opts = append(opts, config.WithStorageEndpoint(u.Scheme, u.Host))
	}
	if flags.signer != "" {
		opts = append(opts, func(c *config.ServerConfig) error {
			c.Signer.Kind = flags.signer
			return nil
		})
	}
	if flags.verbose {
		opts = append(opts, func(c *config.ServerConfig) error {
			c.Log.Level = "debug"
			return nil
		})
	}
	return config.Load(opts...)
}

// newAssembler loads configuration and builds an Assembler around the configured signer.
func (app *App) newAssembler(ctx context.Context, flags *globalFlags) (*signedurl.Assembler, *config.ServerConfig, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := cfg.Log.NewLogger(app.Err)

	signer, err := app.BuildSigner(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	a, err := signedurl.New(signer, cfg.AssemblerOptions(logger)...)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}
