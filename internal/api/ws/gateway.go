// Package ws implements the realtime API gateway: one message-typed
// websocket channel per client, with every response gated on the session
// and the connection's cached identity.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/classpod/classpod/internal/container"
	"github.com/classpod/classpod/internal/session"
	"github.com/classpod/classpod/internal/user"
)

const writeTimeout = 5 * time.Second

// Inbound and outbound message types.
const (
	msgRequestConfig     = "request-config"
	msgRequestUser       = "request-user"
	msgRequestContainers = "request-containers"

	msgConfig       = "config"
	msgUser         = "user"
	msgContainers   = "containers"
	msgLoggedOut    = "logged-out"
	msgUnauthorised = "unauthorised"
)

type typedMessage struct {
	Type string `json:"type"`
}

type configMessage struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	VLEURL string `json:"vleUrl,omitempty"`
}

type userPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userMessage struct {
	Type string      `json:"type"`
	User userPayload `json:"user"`
}

type containersMessage struct {
	Type       string                `json:"type"`
	Containers []container.Container `json:"containers"`
}

// Gateway accepts realtime channels at /api and dispatches their messages.
type Gateway struct {
	sessions       *session.Store
	directory      *user.Directory
	catalog        *container.Catalog
	hub            *Hub
	title          string
	vleURL         string
	originPatterns []string
}

// GatewayOption configures the Gateway.
type GatewayOption func(*Gateway)

// WithOriginPatterns sets the origins accepted on the websocket upgrade.
func WithOriginPatterns(patterns []string) GatewayOption {
	return func(g *Gateway) {
		g.originPatterns = patterns
	}
}

// NewGateway creates a Gateway.
func NewGateway(sessions *session.Store, directory *user.Directory, catalog *container.Catalog, hub *Hub, title, vleURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		sessions:  sessions,
		directory: directory,
		catalog:   catalog,
		hub:       hub,
		title:     title,
		vleURL:    vleURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// client is the per-channel state. The cached user is owned exclusively by
// this channel's read loop and never shared, so a mid-session group change
// on one channel cannot leak into another.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// userID is the session value captured at upgrade time; empty means
	// the browser carried no login record.
	userID string
	// user is resolved lazily by the first successful request-user and
	// gates request-containers. It starts empty, so the channel fails
	// closed by default.
	user *user.User
}

func (c *client) write(ctx context.Context, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c.conn, v)
}

func (c *client) close(reason string) {
	_ = c.conn.Close(websocket.StatusNormalClosure, reason)
}

// ServeHTTP upgrades the request and runs the channel's read loop. The
// session is read once, from the upgrade request's cookie; a websocket
// cannot rewrite cookies, so the channel never mutates the session.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := g.sessions.Read(r).Get(session.KeyUserID)

	opts := &websocket.AcceptOptions{}
	if len(g.originPatterns) > 0 {
		opts.OriginPatterns = g.originPatterns
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Debug("websocket accept failed", "error", err)
		return
	}

	// A channel carrying a login record joins the hub immediately, so a
	// logout terminates it even before it has identified itself.
	c := &client{conn: conn, userID: userID}
	if userID != "" {
		g.hub.register(userID, c)
	}
	g.serve(r.Context(), c)
}

// serve processes messages strictly in arrival order, one at a time.
func (g *Gateway) serve(ctx context.Context, c *client) {
	defer func() {
		if c.userID != "" {
			g.hub.unregister(c.userID, c)
		}
		c.close("")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg typedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ignoring malformed realtime message", "error", err)
			continue
		}

		switch msg.Type {
		case msgRequestConfig:
			if err := c.write(ctx, configMessage{Type: msgConfig, Title: g.title, VLEURL: g.vleURL}); err != nil {
				return
			}

		case msgRequestUser:
			if done := g.handleRequestUser(ctx, c); done {
				return
			}

		case msgRequestContainers:
			if done := g.handleRequestContainers(ctx, c); done {
				return
			}

		default:
			slog.Debug("ignoring unknown realtime message", "type", msg.Type)
		}
	}
}

// handleRequestUser resolves and caches the channel's identity. Untrusted
// channels are actively closed, not left open: the returned bool tells the
// read loop to stop.
func (g *Gateway) handleRequestUser(ctx context.Context, c *client) (done bool) {
	if c.user == nil {
		if c.userID == "" {
			_ = c.write(ctx, typedMessage{Type: msgLoggedOut})
			c.close(msgLoggedOut)
			return true
		}

		u, err := g.directory.GetByID(ctx, c.userID)
		if errors.Is(err, user.ErrUserNotFound) {
			_ = c.write(ctx, typedMessage{Type: msgUnauthorised})
			c.close(msgUnauthorised)
			return true
		}
		if err != nil {
			slog.Error("resolving channel identity", "error", err)
			_ = c.conn.Close(websocket.StatusInternalError, "identity lookup failed")
			return true
		}

		c.user = u
	}

	msg := userMessage{
		Type: msgUser,
		User: userPayload{ID: c.user.ID.String(), Name: c.user.DisplayName()},
	}
	return c.write(ctx, msg) != nil
}

// handleRequestContainers answers only on a channel whose identity has been
// resolved; for anyone else the message is silently dropped.
func (g *Gateway) handleRequestContainers(ctx context.Context, c *client) (done bool) {
	if c.user == nil {
		slog.Debug("ignoring container request on unidentified channel")
		return false
	}

	visible := g.catalog.VisibleTo(ctx, c.user.GroupExternalIDs())
	return c.write(ctx, containersMessage{Type: msgContainers, Containers: visible}) != nil
}
