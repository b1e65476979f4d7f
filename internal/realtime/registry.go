package realtime

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ErrUnknownHandle is returned for operations on a handle that is not registered.
var ErrUnknownHandle = errors.New("unknown connection handle")

// Client is one live transport session.
type Client struct {
	id       string
	identity *domain.Identity
	send     chan []byte

	// guarded by Hub.mu
	rooms map[int64]struct{}
}

// ID returns the connection handle.
func (c *Client) ID() string { return c.id }

// Identity returns the authenticated caller, or nil for anonymous sessions.
func (c *Client) Identity() *domain.Identity { return c.identity }

// Outbound yields encoded frames in publish order. It is closed when the client
// is unregistered.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Register adds a new session and returns its client. identity may be nil.
func (h *Hub) Register(identity *domain.Identity) *Client {
	c := &Client{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, h.bufSize),
		rooms:    make(map[int64]struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("client registered", zap.String("handle", c.id))
	return c
}

// Unregister removes the handle from every room and closes its outbound queue.
// Calling it twice is a no-op.
func (h *Hub) Unregister(handle string) {
	h.mu.Lock()
	c, ok := h.clients[handle]
	if ok {
		h.removeFromRoomsLocked(c)
		delete(h.clients, handle)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.logger.Debug("client unregistered", zap.String("handle", handle))
	}
}

// CloseAll unregisters every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for id, c := range h.clients {
		h.removeFromRoomsLocked(c)
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
