package signedurl

import (
	"errors"
	"fmt"
)

// Signer failure kinds. RemoteSigner implementations wrap one of these in a
// *SignerError so callers can classify failures with errors.Is.
var (
	// ErrAuthorizationDenied indicates the identity lacks signing permission
	ErrAuthorizationDenied = errors.New("signedurl: signing authorization denied")

	// ErrInvalidIdentity indicates an unknown or malformed signing identity
	ErrInvalidIdentity = errors.New("signedurl: invalid signing identity")

	// ErrTransientUnavailable indicates the signer could not be reached or
	// failed server-side; the request may be retried later
	ErrTransientUnavailable = errors.New("signedurl: signer temporarily unavailable")

	// ErrEmptySignature is returned when a signer reports success without
	// returning any signature bytes
	ErrEmptySignature = errors.New("signedurl: signer returned an empty signature")
)

// ValidationError reports bad caller input. It is returned before any
// network interaction and is never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("signedurl: invalid request: %s", e.Message)
	}
	return fmt.Sprintf("signedurl: invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SignerError is returned by RemoteSigner adapters.
type SignerError struct {
	Identity   string
	StatusCode int // transport status when known, 0 otherwise
	Attempts   int
	Err        error
}

func (e *SignerError) Error() string {
	msg := fmt.Sprintf("sign as %s failed", e.Identity)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *SignerError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err is or wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthError returns true if the signer refused the identity
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthorizationDenied) ||
		errors.Is(err, ErrInvalidIdentity)
}

// IsRetryable returns true if the failure was transient
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientUnavailable)
}
