package ws

import (
	"context"
	"sync"
	"time"
)

// Hub tracks which realtime channels belong to which user, so logout can
// actively terminate a user's open channels instead of leaving them
// authenticated until the client reconnects.
type Hub struct {
	mu     sync.Mutex
	byUser map[string]map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{byUser: map[string]map[*client]struct{}{}}
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.byUser[userID]
	if !ok {
		clients = map[*client]struct{}{}
		h.byUser[userID] = clients
	}
	clients[c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.byUser[userID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// CloseUser emits a logged-out message on each of the user's open channels
// and closes them.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		clients = append(clients, c)
	}
	delete(h.byUser, userID)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, c := range clients {
		_ = c.write(ctx, typedMessage{Type: msgLoggedOut})
		c.close("logged-out")
	}
}
