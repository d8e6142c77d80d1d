// Package notify delivers ingestion progress events to connected clients.
package notify

import (
	"context"
	"sync"
	"time"

	"research-backend/internal/contextutil"
)

// DefaultWriteTimeout bounds a single event write to a client.
const DefaultWriteTimeout = 5 * time.Second

// Channel is a client connection able to receive JSON messages.
// *websocket.Conn satisfies it.
type Channel interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
}

// Hub maps client ids to their current channel. Delivery is best effort:
// events for unknown clients are dropped and write failures are logged.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*conn

	writeTimeout time.Duration
}

type conn struct {
	ch Channel
	mu sync.Mutex // serializes writes; a websocket allows one writer
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*conn), writeTimeout: DefaultWriteTimeout}
}

// SetWriteTimeout changes the per-write deadline. Zero disables it.
func (h *Hub) SetWriteTimeout(d time.Duration) {
	h.writeTimeout = d
}

// Connect registers ch for clientID, replacing any previous channel.
// The replaced channel is not closed.
func (h *Hub) Connect(clientID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientID] = &conn{ch: ch}
}

// Disconnect removes whatever channel is registered for clientID.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, clientID)
}

// Release removes the registration only if ch is still the registered channel.
func (h *Hub) Release(clientID string, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok && c.ch == ch {
		delete(h.clients, clientID)
	}
}

// Connected reports whether clientID has a registered channel.
func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send writes event to clientID's channel. It never blocks on unknown clients
// and never retries. A client that stops reading fails the write once the
// write timeout passes.
func (h *Hub) Send(ctx context.Context, clientID string, event any) {
	if clientID == "" {
		return
	}

	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	err := c.write(event, h.writeTimeout)
	c.mu.Unlock()
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "dropped notification", "client_id", clientID, "error", err)
	}
}

func (c *conn) write(event any, timeout time.Duration) error {
	if timeout > 0 {
		if err := c.ch.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return c.ch.WriteJSON(event)
}
