package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/iamsigner"
	"github.com/tendant/signed-upload/pkg/signedurl/kmssigner"
	"github.com/tendant/signed-upload/pkg/signedurl/objectkey"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		StorageScheme:         signedurl.DefaultScheme,
		StorageHost:           signedurl.DefaultHost,
		DefaultContentType:    "image/jpeg",
		DefaultExpiresMinutes: signedurl.DefaultLifetimeMinutes,
		ObjectKeyPrefix:       "uploads",
		ObjectKeyStrategy:     "random",
		Signer: SignerConfig{
			Kind:       "iam",
			Timeout:    signedurl.DefaultSignTimeout,
			MaxRetries: 3,
			KMSRegion:  "us-east-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ServerConfig represents configuration for the signed upload service.
// The env tags are read by WithEnv; env-default values mirror defaults().
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	Environment string `env:"ENVIRONMENT" env-default:"development" env-description:"development, production, testing"`

	// Upload target
	Bucket              string `env:"UPLOAD_BUCKET" env-description:"bucket receiving uploads"`
	ServiceAccountEmail string `env:"SERVICE_ACCOUNT_EMAIL" env-description:"identity URLs are signed as"`
	StorageScheme       string `env:"STORAGE_SCHEME" env-default:"https"`
	StorageHost         string `env:"STORAGE_HOST" env-default:"storage.googleapis.com"`
	VirtualHostedStyle  bool   `env:"VIRTUAL_HOSTED_STYLE" env-default:"false" env-description:"address buckets as <bucket>.<host>"`

	// Request defaults
	DefaultContentType    string `env:"DEFAULT_CONTENT_TYPE" env-default:"image/jpeg"`
	DefaultExpiresMinutes int    `env:"DEFAULT_EXPIRES_MINUTES" env-default:"15"`
	ObjectKeyPrefix       string `env:"OBJECT_KEY_PREFIX" env-default:"uploads"`
	ObjectKeyStrategy     string `env:"OBJECT_KEY_STRATEGY" env-default:"random" env-description:"random or sharded"`

	Signer SignerConfig
	Log    LogConfig
}

// SignerConfig selects and tunes the remote signer.
type SignerConfig struct {
	Kind        string        `env:"SIGNER" env-default:"iam" env-description:"iam or kms"`
	Timeout     time.Duration `env:"SIGN_TIMEOUT" env-default:"10s"`
	MaxRetries  int           `env:"SIGN_MAX_RETRIES" env-default:"3"`
	IAMEndpoint string        `env:"IAM_ENDPOINT" env-description:"IAM Credentials host:port"`
	KMSKeyID    string        `env:"KMS_KEY_ID"`
	KMSRegion   string        `env:"KMS_REGION" env-default:"us-east-1"`
	KMSEndpoint string        `env:"KMS_ENDPOINT"`
}

// LogConfig controls the slog handler built by NewLogger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn, error"`
	Format string `env:"LOG_FORMAT" env-default:"text" env-description:"text or json"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Bucket == "" {
		return errors.New("upload bucket is required")
	}
	if strings.Contains(c.Bucket, "/") {
		return fmt.Errorf("upload bucket %q must not contain '/'", c.Bucket)
	}
	if strings.TrimSpace(c.ServiceAccountEmail) == "" {
		return errors.New("service account email is required")
	}
	if c.StorageScheme != "http" && c.StorageScheme != "https" {
		return fmt.Errorf("storage scheme must be 'http' or 'https', got: %s", c.StorageScheme)
	}
	if c.DefaultExpiresMinutes <= 0 {
		return fmt.Errorf("default expiry must be positive, got: %d", c.DefaultExpiresMinutes)
	}
	if c.ObjectKeyStrategy != "random" && c.ObjectKeyStrategy != "sharded" {
		return fmt.Errorf("object key strategy must be 'random' or 'sharded', got: %s", c.ObjectKeyStrategy)
	}

	switch c.Signer.Kind {
	case "iam":
	case "kms":
		if c.Signer.KMSKeyID == "" {
			return errors.New("kms key id is required when using the kms signer")
		}
	default:
		return fmt.Errorf("signer must be 'iam' or 'kms', got: %s", c.Signer.Kind)
	}
	if c.Signer.Timeout <= 0 {
		return errors.New("sign timeout must be positive")
	}
	if c.Signer.MaxRetries < 0 {
		return errors.New("sign max retries cannot be negative")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", c.Log.Format)
	}

	return nil
}

// IsDevelopment reports whether debug endpoints may be exposed.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// Location returns where signed URLs address the bucket.
func (c *ServerConfig) Location() signedurl.Location {
	return signedurl.Location{
		Scheme:        c.StorageScheme,
		Host:          c.StorageHost,
		VirtualHosted: c.VirtualHostedStyle,
	}
}

// KeyGenerator returns the generator used when a caller omits the object name.
func (c *ServerConfig) KeyGenerator() objectkey.Generator {
	if c.ObjectKeyStrategy == "sharded" {
		return objectkey.NewShardedGenerator(c.ObjectKeyPrefix)
	}
	return objectkey.NewRandomGenerator(c.ObjectKeyPrefix)
}

// BuildSigner creates the configured RemoteSigner.
func (c *ServerConfig) BuildSigner(ctx context.Context, logger *slog.Logger) (signedurl.RemoteSigner, error) {
	switch c.Signer.Kind {
	case "kms":
		signer, err := kmssigner.New(ctx, kmssigner.Config{
			Region:      c.Signer.KMSRegion,
			KeyID:       c.Signer.KMSKeyID,
			Endpoint:    c.Signer.KMSEndpoint,
			MaxAttempts: c.Signer.MaxRetries + 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build kms signer: %w", err)
		}
		return signer, nil
	default:
		signer, err := iamsigner.New(ctx,
			iamsigner.WithEndpoint(c.Signer.IAMEndpoint),
			iamsigner.WithMaxRetries(c.Signer.MaxRetries),
			iamsigner.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build iam signer: %w", err)
		}
		return signer, nil
	}
}

// AssemblerOptions returns the signedurl options implied by the config.
func (c *ServerConfig) AssemblerOptions(logger *slog.Logger) []signedurl.Option {
	return []signedurl.Option{
		signedurl.WithLocation(c.Location()),
		signedurl.WithSignTimeout(c.Signer.Timeout),
		signedurl.WithLogger(logger),
	}
}

// BuildAssembler creates the configured signer and an Assembler around it.
func (c *ServerConfig) BuildAssembler(ctx context.Context, logger *slog.Logger) (*signedurl.Assembler, error) {
	signer, err := c.BuildSigner(ctx, logger)
	if err != nil {
		return nil, err
	}
	return signedurl.New(signer, c.AssemblerOptions(logger)...)
}

// NewLogger builds a slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
