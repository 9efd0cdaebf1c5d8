package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpod/classpod/internal/session"
)

const testCookieName = "classpod_test_session"

func newStore(opts ...session.StoreOption) *session.Store {
	return session.NewStore(testCookieName, "test-secret", 14, opts...)
}

// write runs mutate against a fresh session and returns the resulting cookie.
func write(t *testing.T, store *session.Store, mutate func(*session.Session)) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	mutate(store.Open(rec, req))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "mutation should have written a cookie")
	return cookies[len(cookies)-1]
}

// reopen reconstructs a read-only session from a previously written cookie.
func reopen(store *session.Store, cookie *http.Cookie) *session.Session {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	return store.Read(req)
}

func TestSession_RoundTrip(t *testing.T) {
	store := newStore()

	cookie := write(t, store, func(s *session.Session) {
		require.NoError(t, s.Set("user_id", "42"))
	})

	got, ok := reopen(store, cookie).Get("user_id")
	assert.True(t, ok)
	assert.Equal(t, "42", got)
}

func TestSession_MissingCookieIsEmpty(t *testing.T) {
	store := newStore()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	sess := store.Read(req)
	assert.False(t, sess.Contains("user_id"))
}

func TestSession_ClearDiscardsAllKeys(t *testing.T) {
	store := newStore()

	cookie := write(t, store, func(s *session.Session) {
		require.NoError(t, s.Set("state", "abc"))
		require.NoError(t, s.Set("user_id", "42"))
		require.NoError(t, s.Clear())
	})

	sess := reopen(store, cookie)
	_, ok := sess.Get("state")
	assert.False(t, ok)
	_, ok = sess.Get("user_id")
	assert.False(t, ok)
}

func TestSession_DeleteIsIdempotent(t *testing.T) {
	store := newStore()

	cookie := write(t, store, func(s *session.Session) {
		require.NoError(t, s.Set("user_id", "42"))
		require.NoError(t, s.Delete("user_id"))
		require.NoError(t, s.Delete("user_id"))
	})

	assert.False(t, reopen(store, cookie).Contains("user_id"))
}

func TestSession_TamperedCookieIsEmpty(t *testing.T) {
	store := newStore()

	cookie := write(t, store, func(s *session.Session) {
		require.NoError(t, s.Set("user_id", "42"))
	})

	// Flip one byte anywhere in the cookie value; the session must come
	// back empty, never partially decoded.
	for _, pos := range []int{0, len(cookie.Value) / 2, len(cookie.Value) - 1} {
		tampered := *cookie
		raw := []byte(cookie.Value)
		if raw[pos] == 'A' {
			raw[pos] = 'B'
		} else {
			raw[pos] = 'A'
		}
		tampered.Value = string(raw)

		assert.False(t, reopen(store, &tampered).Contains("user_id"),
			"tampering at position %d should yield an empty session", pos)
	}
}

func TestSession_WrongKeyIsEmpty(t *testing.T) {
	store := newStore()

	cookie := write(t, store, func(s *session.Session) {
		require.NoError(t, s.Set("user_id", "42"))
	})

	other := session.NewStore(testCookieName, "other-secret", 14)
	assert.False(t, reopen(other, cookie).Contains("user_id"))
}

func TestSession_ExpiredCookieIsEmpty(t *testing.T) {
	issued := time.Now()
	store := newStore(session.WithClock(func() time.Time { return issued }))

	cookie := write(t, store, func(s *session.Session) {
		require.NoError(t, s.Set("user_id", "42"))
	})

	// Same key, but the clock has moved past the validity window.
	late := session.NewStore(testCookieName, "test-secret", 14,
		session.WithClock(func() time.Time { return issued.Add(15 * 24 * time.Hour) }))
	assert.False(t, reopen(late, cookie).Contains("user_id"))

	// Inside the window the session is still valid.
	early := session.NewStore(testCookieName, "test-secret", 14,
		session.WithClock(func() time.Time { return issued.Add(13 * 24 * time.Hour) }))
	assert.True(t, reopen(early, cookie).Contains("user_id"))
}

func TestSession_ReadOnlyMutationFails(t *testing.T) {
	store := newStore()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	sess := store.Read(req)
	assert.ErrorIs(t, sess.Set("user_id", "42"), session.ErrReadOnly)
	assert.ErrorIs(t, sess.Clear(), session.ErrReadOnly)
}

func TestBlake2bSigner_Verify(t *testing.T) {
	signer := session.NewBlake2bSigner("secret")

	mac, err := signer.Sign([]byte("payload"))
	require.NoError(t, err)

	assert.True(t, signer.Verify([]byte("payload"), mac))
	assert.False(t, signer.Verify([]byte("payloax"), mac))
	assert.False(t, signer.Verify([]byte("payload"), append([]byte{}, mac[:len(mac)-1]...)))
}
