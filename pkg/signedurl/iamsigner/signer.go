// Package iamsigner implements signedurl.RemoteSigner on top of the IAM
// Service Account Credentials signBlob method. The private key never leaves
// Google; the caller only needs permission to act as the service account
// (roles/iam.serviceAccountTokenCreator).
package iamsigner

import (
	"context"
	"fmt"
	"log/slog"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/lestrrat-go/backoff/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tendant/signed-upload/pkg/signedurl"
)

// Scope is the OAuth scope requested for application default credentials.
const Scope = "https://www.googleapis.com/auth/cloud-platform"

// API is the subset of the IAM Credentials client the Signer uses.
// *credentials.IamCredentialsClient satisfies it.
type API interface {
	SignBlob(ctx context.Context, req *credentialspb.SignBlobRequest, opts ...gax.CallOption) (*credentialspb.SignBlobResponse, error)
}

// Signer signs blobs as a service account through signBlob.
type Signer struct {
	client        API
	closer        func() error
	clientOptions []option.ClientOption
	retry         RetryConfig
	logger        *slog.Logger
}

var _ signedurl.RemoteSigner = (*Signer)(nil)

// New creates a Signer. Unless WithClient is given, a gRPC IAM Credentials
// client is dialed with application default credentials.
func New(ctx context.Context, opts ...Option) (*Signer, error) {
	s := &Signer{
		retry:  DefaultRetryConfig,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		clientOpts := append([]option.ClientOption{option.WithScopes(Scope)}, s.clientOptions...)
		client, err := credentials.NewIamCredentialsClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("iamsigner: create credentials client: %w", err)
		}
		s.client = client
		s.closer = client.Close
	}
	return s, nil
}

// Close releases the underlying client connection when New created it.
func (s *Signer) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// ResourceName returns the IAM resource name for a service account email.
func ResourceName(identity string) string {
	return "projects/-/serviceAccounts/" + identity
}

// The backoff loop in Sign is the only retrier.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

// Sign asks IAM to sign message as identity. Transient failures are retried
// with exponential backoff until the retry budget or ctx runs out.
func (s *Signer) Sign(ctx context.Context, identity string, message []byte) ([]byte, error) {
	req := &credentialspb.SignBlobRequest{
		Name:    ResourceName(identity),
		Payload: message,
	}

	var (
		attempts int
		lastErr  *signedurl.SignerError
	)
	b := s.retry.policy().Start(ctx)
	for backoff.Continue(b) {
		attempts++
		sig, err := s.signOnce(ctx, identity, req)
		if err == nil {
			return sig, nil
		}
		err.Attempts = attempts
		lastErr = err
		if !signedurl.IsRetryable(err) {
			return nil, err
		}
		s.logger.Warn("signBlob attempt failed",
			"identity", identity,
			"attempt", attempts,
			"code", Code(err).String(),
			"err", err.Err,
		)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &signedurl.SignerError{
			Identity: identity,
			Attempts: attempts,
			Err:      fmt.Errorf("%w: %w", signedurl.ErrTransientUnavailable, ctxErr),
		}
	}
	if lastErr == nil {
		return nil, &signedurl.SignerError{Identity: identity, Err: signedurl.ErrTransientUnavailable}
	}
	return nil, lastErr
}

func (s *Signer) signOnce(ctx context.Context, identity string, req *credentialspb.SignBlobRequest) ([]byte, *signedurl.SignerError) {
	resp, err := s.client.SignBlob(ctx, req, noRetry)
	if err != nil {
		return nil, &signedurl.SignerError{Identity: identity, Err: classify(err)}
	}
	sig := resp.GetSignedBlob()
	if len(sig) == 0 {
		return nil, &signedurl.SignerError{Identity: identity, Err: signedurl.ErrEmptySignature}
	}
	s.logger.Debug("signBlob succeeded", "identity", identity, "key_id", resp.GetKeyId())
	return sig, nil
}

// classify maps a signBlob RPC error to a signedurl error kind.
func classify(err error) error {
	var kind error
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = signedurl.ErrAuthorizationDenied
	case codes.NotFound, codes.InvalidArgument:
		kind = signedurl.ErrInvalidIdentity
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Internal, codes.Canceled:
		kind = signedurl.ErrTransientUnavailable
	default:
		return fmt.Errorf("iamsigner: signBlob failed: %w", err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Code returns the gRPC status code carried by err, or codes.Unknown.
func Code(err error) codes.Code {
	return status.Code(err)
}
