package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/classpod/classpod/internal/api/middleware"
	"github.com/classpod/classpod/internal/api/response"
	"github.com/classpod/classpod/internal/config"
	"github.com/classpod/classpod/internal/lti"
	"github.com/classpod/classpod/internal/session"
	"github.com/classpod/classpod/internal/user"
)

// Session keys used by the launch handshake.
const (
	sessionKeyState = "state"
	sessionKeyNonce = "nonce"
)

// LTIHandler implements the two steps of the launch handshake: the login
// initiation redirect and the launch POST-back.
type LTIHandler struct {
	sessions  *session.Store
	platforms *config.File
	verifier  lti.Verifier
	directory *user.Directory
	baseURL   string
}

// NewLTIHandler creates a new LTIHandler. baseURL is this tool's externally
// visible origin, used to build the launch redirect URI.
func NewLTIHandler(sessions *session.Store, platforms *config.File, verifier lti.Verifier, directory *user.Directory, baseURL string) *LTIHandler {
	return &LTIHandler{
		sessions:  sessions,
		platforms: platforms,
		verifier:  verifier,
		directory: directory,
		baseURL:   baseURL,
	}
}

// LoginStart handles POST /lti/login, the platform-initiated login. The
// session is cleared unconditionally first so no pre-seeded state survives
// into the new handshake.
func (h *LTIHandler) LoginStart(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	sess := h.sessions.Open(w, r)
	if err := sess.Clear(); err != nil {
		slog.Error("clearing session", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not initiate login", requestID)
		return
	}

	if err := r.ParseForm(); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_REQUEST", "Malformed login initiation request", requestID)
		return
	}

	issuer := r.Form.Get("iss")
	targetLinkURI := r.Form.Get("target_link_uri")
	if issuer == "" || targetLinkURI == "" {
		response.Err(w, http.StatusBadRequest, "INVALID_REQUEST", "iss and target_link_uri are required", requestID)
		return
	}

	platform, ok := h.platforms.PlatformByIssuer(issuer)
	if !ok {
		slog.Warn("login initiation for unknown issuer", "issuer", issuer, "requestId", requestID)
		response.Err(w, http.StatusBadRequest, "UNKNOWN_ISSUER", "No platform is configured for this issuer", requestID)
		return
	}

	// The state token is both sent to the platform and stored in the
	// session; the launch handler compares the two on return.
	state := uuid.New().String()
	nonce := uuid.New().String()
	if err := sess.Set(sessionKeyState, state); err != nil {
		slog.Error("storing state", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not initiate login", requestID)
		return
	}
	if err := sess.Set(sessionKeyNonce, nonce); err != nil {
		slog.Error("storing nonce", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not initiate login", requestID)
		return
	}

	params := url.Values{
		"scope":         {"openid"},
		"response_type": {"id_token"},
		"response_mode": {"form_post"},
		"client_id":     {platform.ClientID},
		"redirect_uri":  {h.baseURL + "/lti"},
		"state":         {state},
		"nonce":         {nonce},
		"prompt":        {"none"},
	}
	if hint := r.Form.Get("login_hint"); hint != "" {
		params.Set("login_hint", hint)
	}
	if hint := r.Form.Get("lti_message_hint"); hint != "" {
		params.Set("lti_message_hint", hint)
	}

	slog.Debug("redirecting to platform", "issuer", issuer, "requestId", requestID)
	http.Redirect(w, r, platform.AuthLoginURL+"?"+params.Encode(), http.StatusFound)
}

// Launch handles POST /lti, the platform's signed launch message. Phase A
// checks the state round-trip before anything else; phase B verifies the
// token, upserts the user and materializes the authenticated session.
func (h *LTIHandler) Launch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	sess := h.sessions.Open(w, r)

	echoed := r.PostFormValue("state")
	stored, ok := sess.Get(sessionKeyState)
	if !ok || echoed == "" || echoed != stored {
		slog.Warn("launch state mismatch", "requestId", requestID)
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Launch state validation failed", requestID)
		return
	}

	nonce, _ := sess.Get(sessionKeyNonce)
	launch, err := h.verifier.Verify(r.Context(), r.PostFormValue("id_token"), nonce)
	if err != nil {
		if errors.Is(err, lti.ErrUnknownIssuer) {
			slog.Warn("launch from unknown issuer", "error", err, "requestId", requestID)
			response.Err(w, http.StatusBadRequest, "UNKNOWN_ISSUER", "No platform is configured for this issuer", requestID)
			return
		}
		slog.Warn("launch verification failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Launch verification failed", requestID)
		return
	}

	// The upsert must complete before the session is marked authenticated;
	// a login is never confirmed for a directory write that did not happen.
	u, err := h.directory.Upsert(r.Context(), launch.Issuer, launch.Subject, launch.Name)
	if err != nil {
		slog.Error("upserting launched user", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not record the login", requestID)
		return
	}

	err = sess.Clear()
	if err == nil {
		err = sess.Set(session.KeyUserID, u.ID.String())
	}
	if err != nil {
		slog.Error("materializing session", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not record the login", requestID)
		return
	}

	slog.Info("user launched", "userId", u.ID, "issuer", launch.Issuer, "requestId", requestID)
	http.Redirect(w, r, "/app", http.StatusFound)
}
