package handler

import (
	"log/slog"
	"net/http"

	"github.com/classpod/classpod/internal/api/middleware"
	"github.com/classpod/classpod/internal/session"
)

// ChannelCloser terminates a user's open realtime channels. Implemented by
// the websocket hub.
type ChannelCloser interface {
	CloseUser(userID string)
}

// LogoutHandler handles GET /logout.
type LogoutHandler struct {
	sessions *session.Store
	channels ChannelCloser
	vleURL   string
}

// NewLogoutHandler creates a new LogoutHandler. vleURL is the external
// return target; when empty, logout redirects to the application route.
func NewLogoutHandler(sessions *session.Store, channels ChannelCloser, vleURL string) *LogoutHandler {
	return &LogoutHandler{
		sessions: sessions,
		channels: channels,
		vleURL:   vleURL,
	}
}

// ServeHTTP deletes the login record from the session, closes the user's
// open realtime channels and redirects to the configured return URL.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	sess := h.sessions.Open(w, r)
	if userID, ok := sess.Get(session.KeyUserID); ok {
		if err := sess.Delete(session.KeyUserID); err != nil {
			slog.Error("deleting login record", "error", err, "requestId", requestID)
		}
		if h.channels != nil {
			h.channels.CloseUser(userID)
		}
		slog.Info("user logged out", "userId", userID, "requestId", requestID)
	}

	target := h.vleURL
	if target == "" {
		target = "/app"
	}
	http.Redirect(w, r, target, http.StatusFound)
}
