// Package session implements the cookie-backed session store. The signed
// cookie is the only durable representation of a session: every mutation
// re-serializes and re-signs the full key/value map into the response
// cookie, so a session can never be partially written.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrReadOnly is returned when mutating a session opened without a
// response writer (e.g. on a websocket upgrade request).
var ErrReadOnly = errors.New("session is read-only")

// KeyUserID is the session key holding the authenticated user's id.
const KeyUserID = "user_id"

// envelope is the signed cookie payload.
type envelope struct {
	Values   map[string]string `json:"v"`
	IssuedAt int64             `json:"iat"`
}

// Store constructs sessions from and into a named, signed cookie.
type Store struct {
	cookieName   string
	signer       Signer
	validityDays int
	now          func() time.Time
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithSigner overrides the MAC implementation.
func WithSigner(signer Signer) StoreOption {
	return func(s *Store) {
		s.signer = signer
	}
}

// NewStore creates a session store for the named cookie, signing with a key
// derived from secret. Sessions older than validityDays are discarded.
func NewStore(cookieName, secret string, validityDays int, opts ...StoreOption) *Store {
	s := &Store{
		cookieName:   cookieName,
		signer:       NewBlake2bSigner(secret),
		validityDays: validityDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is the per-request view of the cookie session. Mutations rewrite
// the cookie on w immediately.
type Session struct {
	store  *Store
	w      http.ResponseWriter
	values map[string]string
}

// Open materializes the session from the request cookie. A missing cookie,
// a bad signature, an expired timestamp or a malformed payload all yield an
// empty session; opening never fails.
func (s *Store) Open(w http.ResponseWriter, r *http.Request) *Session {
	return &Session{
		store:  s,
		w:      w,
		values: s.decode(r),
	}
}

// Read materializes a read-only session from the request cookie. Mutating
// it returns ErrReadOnly.
func (s *Store) Read(r *http.Request) *Session {
	return &Session{
		store:  s,
		values: s.decode(r),
	}
}

func (s *Store) decode(r *http.Request) map[string]string {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return map[string]string{}
	}

	payload, mac, ok := splitCookie(cookie.Value)
	if !ok || !s.signer.Verify(payload, mac) {
		return map[string]string{}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Values == nil {
		return map[string]string{}
	}

	age := s.now().Sub(time.Unix(env.IssuedAt, 0))
	if age < 0 || age > time.Duration(s.validityDays)*24*time.Hour {
		return map[string]string{}
	}

	return env.Values
}

// encode serializes and signs the value map into a cookie value.
func (s *Store) encode(values map[string]string) (string, error) {
	payload, err := json.Marshal(envelope{
		Values:   values,
		IssuedAt: s.now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	mac, err := s.signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

func splitCookie(value string) (payload, mac []byte, ok bool) {
	raw, macPart, found := strings.Cut(value, ".")
	if !found {
		return nil, nil, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, nil, false
	}

	mac, err = base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return nil, nil, false
	}

	return payload, mac, true
}

// Get returns the value for key; ok is false when the key is absent.
func (sess *Session) Get(key string) (value string, ok bool) {
	value, ok = sess.values[key]
	return value, ok
}

// Contains reports whether the session holds a value for key.
func (sess *Session) Contains(key string) bool {
	_, ok := sess.values[key]
	return ok
}

// Set stores a value and rewrites the cookie.
func (sess *Session) Set(key, value string) error {
	sess.values[key] = value
	return sess.writeCookie()
}

// Delete removes a key and rewrites the cookie. Deleting an absent key is
// a no-op apart from the cookie rewrite.
func (sess *Session) Delete(key string) error {
	delete(sess.values, key)
	return sess.writeCookie()
}

// Clear discards all keys and rewrites the cookie as an empty session.
func (sess *Session) Clear() error {
	sess.values = map[string]string{}
	return sess.writeCookie()
}

func (sess *Session) writeCookie() error {
	if sess.w == nil {
		return ErrReadOnly
	}

	value, err := sess.store.encode(sess.values)
	if err != nil {
		return err
	}

	http.SetCookie(sess.w, &http.Cookie{
		Name:     sess.store.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   sess.store.validityDays * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	return nil
}
