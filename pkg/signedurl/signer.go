package signedurl

import "context"

// RemoteSigner signs bytes with a private key it alone holds.
//
// Implementations return the raw signature bytes, after undoing any
// transport encoding. Failures are *SignerError values wrapping
// ErrAuthorizationDenied, ErrInvalidIdentity or ErrTransientUnavailable.
type RemoteSigner interface {
	Sign(ctx context.Context, identity string, message []byte) ([]byte, error)
}

// SignerFunc adapts a function to RemoteSigner.
type SignerFunc func(ctx context.Context, identity string, message []byte) ([]byte, error)

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, identity string, message []byte) ([]byte, error) {
	return f(ctx, identity, message)
}
