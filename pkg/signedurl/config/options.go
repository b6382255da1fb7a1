package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithBucket sets the bucket receiving uploads
func WithBucket(bucket string) Option {
	return func(c *ServerConfig) error {
		c.Bucket = bucket
		return nil
	}
}

// WithServiceAccount sets the identity URLs are signed as
func WithServiceAccount(email string) Option {
	return func(c *ServerConfig) error {
		c.ServiceAccountEmail = email
		return nil
	}
}

// WithStorageEndpoint sets the scheme and host of issued URLs
func WithStorageEndpoint(scheme, host string) Option {
	return func(c *ServerConfig) error {
		if host == "" {
			return fmt.Errorf("storage host cannot be empty")
		}
		c.StorageScheme = scheme
		c.StorageHost = host
		return nil
	}
}

// WithVirtualHostedStyle toggles <bucket>.<host> addressing
func WithVirtualHostedStyle(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.VirtualHostedStyle = enabled
		return nil
	}
}

// WithDefaults sets the content type and lifetime used when a request omits them
func WithDefaults(contentType string, expiresMinutes int) Option {
	return func(c *ServerConfig) error {
		if expiresMinutes <= 0 {
			return fmt.Errorf("default expiry must be positive, got: %d", expiresMinutes)
		}
		c.DefaultContentType = contentType
		c.DefaultExpiresMinutes = expiresMinutes
		return nil
	}
}

// WithObjectKeys configures generated object keys
func WithObjectKeys(prefix, strategy string) Option {
	return func(c *ServerConfig) error {
		if strategy != "random" && strategy != "sharded" {
			return fmt.Errorf("object key strategy must be 'random' or 'sharded', got: %s", strategy)
		}
		c.ObjectKeyPrefix = prefix
		c.ObjectKeyStrategy = strategy
		return nil
	}
}

// WithIAMSigner selects the IAM signBlob signer. An empty endpoint keeps the public API.
func WithIAMSigner(endpoint string) Option {
	return func(c *ServerConfig) error {
		c.Signer.Kind = "iam"
		c.Signer.IAMEndpoint = endpoint
		return nil
	}
}

// WithKMSSigner selects the AWS KMS signer
func WithKMSSigner(keyID, region string) Option {
	return func(c *ServerConfig) error {
		if keyID == "" {
			return fmt.Errorf("kms key id cannot be empty")
		}
		c.Signer.Kind = "kms"
		c.Signer.KMSKeyID = keyID
		if region != "" {
			c.Signer.KMSRegion = region
		}
		return nil
	}
}

// WithSignRetry bounds each remote signing call
func WithSignRetry(timeout time.Duration, maxRetries int) Option {
	return func(c *ServerConfig) error {
		c.Signer.Timeout = timeout
		c.Signer.MaxRetries = maxRetries
		return nil
	}
}

// WithLogging sets log level and format
func WithLogging(level, format string) Option {
	return func(c *ServerConfig) error {
		c.Log.Level = level
		c.Log.Format = format
		return nil
	}
}
