// Package kmssigner implements signedurl.RemoteSigner with an asymmetric
// AWS KMS key (RSA_2048 or larger, SIGN_VERIFY usage). The key must hold the
// same RSA key pair registered for the signing identity.
package kmssigner

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/signed-upload/pkg/signedurl"
)

// Config options for the KMS signer
type Config struct {
	Region          string            // AWS region
	KeyID           string            // key ID, ARN or alias used for every identity not in Keys
	Keys            map[string]string // identity email -> key ID
	AccessKeyID     string            // optional static credentials
	SecretAccessKey string
	Endpoint        string // optional custom endpoint (LocalStack etc.)
	MaxAttempts     int    // SDK retry attempts, 0 keeps the SDK default
}

// API is the subset of the KMS client the signer needs.
type API interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// Signer signs with KMS keys.
type Signer struct {
	client API
	keyID  string
	keys   map[string]string
}

var _ signedurl.RemoteSigner = (*Signer)(nil)

// New creates a KMS-backed signer from config
func New(ctx context.Context, config Config) (*Signer, error) {
	if config.KeyID == "" && len(config.Keys) == 0 {
		return nil, errors.New("kmssigner: a key ID is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.MaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(config.MaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("kmssigner: failed to load AWS config: %w", err)
	}

	var kmsOptions []func(*kms.Options)
	if config.Endpoint != "" {
		kmsOptions = append(kmsOptions, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	return NewWithClient(kms.NewFromConfig(awsCfg, kmsOptions...), config.KeyID, config.Keys), nil
}

// NewWithClient wraps an existing KMS client.
func NewWithClient(client API, keyID string, keys map[string]string) *Signer {
	return &Signer{client: client, keyID: keyID, keys: keys}
}

// KeyFor returns the KMS key used to sign as identity.
func (s *Signer) KeyFor(identity string) (string, bool) {
	if k, ok := s.keys[identity]; ok && k != "" {
		return k, true
	}
	return s.keyID, s.keyID != ""
}

// Sign hashes message with SHA-256 and has KMS produce an RSASSA-PKCS1-v1_5
// signature over the digest.
func (s *Signer) Sign(ctx context.Context, identity string, message []byte) ([]byte, error) {
	keyID, ok := s.KeyFor(identity)
	if !ok {
		return nil, &signedurl.SignerError{
			Identity: identity,
			Err:      fmt.Errorf("%w: no KMS key for identity", signedurl.ErrInvalidIdentity),
		}
	}

	digest := sha256.Sum256(message)
	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyID),
		Message:          digest[:],
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
	})
	if err != nil {
		return nil, &signedurl.SignerError{Identity: identity, Err: classify(err)}
	}
	if len(out.Signature) == 0 {
		return nil, &signedurl.SignerError{Identity: identity, Err: signedurl.ErrEmptySignature}
	}
	return out.Signature, nil
}

// classify maps KMS API error codes to signedurl error kinds.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", signedurl.ErrTransientUnavailable, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", signedurl.ErrTransientUnavailable, err)
	}

	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
		return fmt.Errorf("%w: %w", signedurl.ErrAuthorizationDenied, err)
	case "NotFoundException", "InvalidKeyUsageException", "KMSInvalidStateException",
		"DisabledException", "InvalidArnException", "ValidationException":
		return fmt.Errorf("%w: %w", signedurl.ErrInvalidIdentity, err)
	case "KMSInternalException", "DependencyTimeoutException", "KeyUnavailableException",
		"ThrottlingException", "LimitExceededException":
		return fmt.Errorf("%w: %w", signedurl.ErrTransientUnavailable, err)
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return fmt.Errorf("%w: %w", signedurl.ErrTransientUnavailable, err)
	}
	return fmt.Errorf("kmssigner: %w", err)
}
