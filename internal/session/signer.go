package session

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Signer produces and checks the MAC protecting the session cookie. It is
// an interface so the MAC scheme can be swapped without touching the store
// or the handlers.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Verify(payload, mac []byte) bool
}

// Blake2bSigner signs payloads with a keyed BLAKE2b-256 hash.
type Blake2bSigner struct {
	key []byte
}

// NewBlake2bSigner derives a fixed-size MAC key from the configured secret.
// BLAKE2b keys are capped at 64 bytes, so longer secrets are hashed down.
func NewBlake2bSigner(secret string) *Blake2bSigner {
	key := []byte(secret)
	if len(key) > 64 {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Blake2bSigner{key: key}
}

// Sign returns the keyed BLAKE2b-256 MAC of payload.
func (s *Blake2bSigner) Sign(payload []byte) ([]byte, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return nil, fmt.Errorf("creating keyed hash: %w", err)
	}
	h.Write(payload)
	return h.Sum(nil), nil
}

// Verify reports whether mac is the valid MAC for payload, in constant time.
func (s *Blake2bSigner) Verify(payload, mac []byte) bool {
	expected, err := s.Sign(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, mac) == 1
}
