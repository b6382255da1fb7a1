package signedurl

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"sync"
	"testing"
)

// rsaSigner signs with an in-memory key. It exists only in tests, to check
// issued signatures cryptographically.
type rsaSigner struct {
	key *rsa.PrivateKey

	mu       sync.Mutex
	calls    int
	messages [][]byte
}

func newRSASigner(t *testing.T) *rsaSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &rsaSigner{key: key}
}

func (s *rsaSigner) Sign(ctx context.Context, identity string, message []byte) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.messages = append(s.messages, append([]byte(nil), message...))
	s.mu.Unlock()

	digest := sha256.Sum256(message)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

func (s *rsaSigner) verify(message, sig []byte) error {
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(&s.key.PublicKey, crypto.SHA256, digest[:], sig)
}

func (s *rsaSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
