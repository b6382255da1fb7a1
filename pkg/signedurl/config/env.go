package config

import (
	"fmt"
	"io"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv loads the whole configuration from environment variables, using
// the env-default tag for anything unset. It replaces every field, so put it
// before options that should take precedence.
//
// Server:
//   PORT, ENVIRONMENT
//
// Upload target:
//   UPLOAD_BUCKET, SERVICE_ACCOUNT_EMAIL, STORAGE_SCHEME, STORAGE_HOST,
//   VIRTUAL_HOSTED_STYLE
//
// Request defaults:
//   DEFAULT_CONTENT_TYPE, DEFAULT_EXPIRES_MINUTES, OBJECT_KEY_PREFIX,
//   OBJECT_KEY_STRATEGY
//
// Signer:
//   SIGNER (iam|kms), SIGN_TIMEOUT, SIGN_MAX_RETRIES, IAM_ENDPOINT (host:port),
//   KMS_KEY_ID, KMS_REGION, KMS_ENDPOINT
//
// Logging:
//   LOG_LEVEL, LOG_FORMAT
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var loaded ServerConfig
		if err := cleanenv.ReadEnv(&loaded); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		*c = loaded
		return nil
	}
}

// WithFile loads configuration from a yaml, json, toml or env file, with
// environment variables taking precedence over file values.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		var loaded ServerConfig
		if err := cleanenv.ReadConfig(path, &loaded); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		*c = loaded
		return nil
	}
}

// Usage writes the list of supported environment variables to w.
func Usage(w io.Writer) {
	var cfg ServerConfig
	cleanenv.FUsage(w, &cfg, nil)()
}
