package signedurl

import (
	"log/slog"
	"time"
)

// DefaultSignTimeout bounds a single RemoteSigner call.
const DefaultSignTimeout = 10 * time.Second

// Option is a functional option for configuring an Assembler
type Option func(*Assembler)

// WithLocation sets scheme, host and addressing style
func WithLocation(loc Location) Option {
	return func(a *Assembler) {
		a.location = loc
	}
}

// WithHost overrides the storage host, e.g. for an emulator
func WithHost(host string) Option {
	return func(a *Assembler) {
		if host != "" {
			a.location.Host = host
		}
	}
}

// WithVirtualHostedStyle addresses buckets as <bucket>.<host>
func WithVirtualHostedStyle(enabled bool) Option {
	return func(a *Assembler) {
		a.location.VirtualHosted = enabled
	}
}

// WithExpiryPolicy replaces the default seven-day clamp
func WithExpiryPolicy(p ExpiryPolicy) Option {
	return func(a *Assembler) {
		a.expiry = p
	}
}

// WithSignTimeout bounds each signer round trip. It is independent of the
// URL's own lifetime.
func WithSignTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.signTimeout = d
		}
	}
}

// WithClock sets the time source used when a request has no IssuedAt
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}
