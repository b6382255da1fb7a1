package iamsigner

import (
	"log/slog"
	"time"

	"github.com/lestrrat-go/backoff/v2"
	"google.golang.org/api/option"
)

// RetryConfig bounds retries of transient signBlob failures.
type RetryConfig struct {
	MaxRetries  int
	MinInterval time.Duration
	MaxInterval time.Duration
}

// DefaultRetryConfig retries three times between 100ms and 2s.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	MinInterval: 100 * time.Millisecond,
	MaxInterval: 2 * time.Second,
}

func (c RetryConfig) policy() backoff.Policy {
	if c.MaxRetries <= 0 {
		return backoff.Null()
	}
	return backoff.Exponential(
		backoff.WithMinInterval(c.MinInterval),
		backoff.WithMaxInterval(c.MaxInterval),
		backoff.WithMultiplier(2),
		backoff.WithJitterFactor(0.1),
		backoff.WithMaxRetries(c.MaxRetries),
	)
}

// Option configures a Signer
type Option func(*Signer)

// WithClient uses an existing IAM Credentials client. The Signer does not
// close it.
func WithClient(client API) Option {
	return func(s *Signer) {
		s.client = client
	}
}

// WithEndpoint overrides the IAM Credentials host:port
func WithEndpoint(endpoint string) Option {
	return func(s *Signer) {
		if endpoint != "" {
			s.clientOptions = append(s.clientOptions, option.WithEndpoint(endpoint))
		}
	}
}

// WithClientOptions passes extra options to the generated client, such as
// option.WithCredentialsFile
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Signer) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// WithRetry configures retry behavior
func WithRetry(cfg RetryConfig) Option {
	return func(s *Signer) {
		s.retry = cfg
	}
}

// WithMaxRetries sets only the retry count, keeping default intervals
func WithMaxRetries(n int) Option {
	return func(s *Signer) {
		s.retry.MaxRetries = n
	}
}

// WithLogger sets the logger used for retry diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Signer) {
		if logger != nil {
			s.logger = logger
		}
	}
}
