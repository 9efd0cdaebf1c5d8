package lti

import (
	"sync"
	"time"
)

// NonceStore tracks launch nonces that have already been accepted, so a
// captured launch token cannot be replayed within its validity window.
// Entries expire after the configured TTL.
type NonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewNonceStore creates a store whose entries live for ttl.
func NewNonceStore(ttl time.Duration) *NonceStore {
	return &NonceStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Use records the nonce and reports whether this was its first use.
func (s *NonceStore) Use(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for n, expiry := range s.seen {
		if now.After(expiry) {
			delete(s.seen, n)
		}
	}

	if _, ok := s.seen[nonce]; ok {
		return false
	}

	s.seen[nonce] = now.Add(s.ttl)
	return true
}
