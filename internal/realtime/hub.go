package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/observability"
)

const defaultSendBuffer = 64

// Hub owns the connection registry and the ticket rooms. All maps are guarded by
// mu: membership changes take the write lock, fan-out takes the read lock and
// never blocks on a client.
type Hub struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	bufSize int

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[int64]map[string]*Client
}

// Stats describes the current hub population.
type Stats struct {
	Connections   int `json:"connections"`
	Rooms         int `json:"rooms"`
	Subscriptions int `json:"subscriptions"`
}

// NewHub creates an empty hub. bufSize bounds each client's outbound queue.
func NewHub(logger *zap.Logger, metrics *observability.Metrics, bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = defaultSendBuffer
	}
	return &Hub{
		logger:  logger.With(zap.String("component", "realtime_hub")),
		metrics: metrics,
		bufSize: bufSize,
		clients: make(map[string]*Client),
		rooms:   make(map[int64]map[string]*Client),
	}
}

// Join subscribes handle to the ticket's room. Joining twice has no effect.
func (h *Hub) Join(handle string, ticketID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[handle]
	if !ok {
		return ErrUnknownHandle
	}
	room, exists := h.rooms[ticketID]
	if !exists {
		room = make(map[string]*Client)
		h.rooms[ticketID] = room
	}
	room[handle] = c
	c.rooms[ticketID] = struct{}{}

	h.logger.Debug("client joined room", zap.String("handle", handle), zap.Int64("ticket_id", ticketID))
	return nil
}

// LeaveRoom unsubscribes handle from a single room.
func (h *Hub) LeaveRoom(handle string, ticketID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[handle]
	if !ok {
		return ErrUnknownHandle
	}
	delete(c.rooms, ticketID)
	h.dropMemberLocked(ticketID, handle)
	return nil
}

// Leave removes handle from every room it joined. The handle stays registered
// and keeps receiving global events.
func (h *Hub) Leave(handle string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[handle]; ok {
		h.removeFromRoomsLocked(c)
	}
}

// PublishToRoom delivers an event to every subscriber of the ticket's room.
func (h *Hub) PublishToRoom(ticketID int64, event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("encode room event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	delivered, slow := fanOut(msg, h.rooms[ticketID])
	h.mu.RUnlock()

	h.finishPublish(event, delivered, slow)
}

// PublishGlobal delivers an event to every registered client.
func (h *Hub) PublishGlobal(event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("encode global event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	delivered, slow := fanOut(msg, h.clients)
	h.mu.RUnlock()

	h.finishPublish(event, delivered, slow)
}

// Send delivers an event to a single handle.
func (h *Hub) Send(handle string, event string, payload any) error {
	msg, err := Encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	c, ok := h.clients[handle]
	if !ok {
		h.mu.RUnlock()
		return ErrUnknownHandle
	}
	delivered, slow := fanOut(msg, map[string]*Client{handle: c})
	h.mu.RUnlock()

	h.finishPublish(event, delivered, slow)
	return nil
}

// Stats reports connection and room counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := Stats{Connections: len(h.clients), Rooms: len(h.rooms)}
	for _, room := range h.rooms {
		stats.Subscriptions += len(room)
	}
	return stats
}

// RoomSize returns the number of subscribers of a ticket's room.
func (h *Hub) RoomSize(ticketID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ticketID])
}

// fanOut must be called with at least the read lock held so that no target's
// queue is closed underneath it.
func fanOut(msg []byte, targets map[string]*Client) (int, []string) {
	delivered := 0
	var slow []string
	for id, c := range targets {
		select {
		case c.send <- msg:
			delivered++
		default:
			slow = append(slow, id)
		}
	}
	return delivered, slow
}

func (h *Hub) finishPublish(event string, delivered int, slow []string) {
	for _, id := range slow {
		h.logger.Warn("dropping slow client; outbound queue full", zap.String("handle", id), zap.String("event", event))
		h.Unregister(id)
	}
	h.metrics.RecordBroadcast(event, delivered, len(slow))
}

func (h *Hub) removeFromRoomsLocked(c *Client) {
	for ticketID := range c.rooms {
		h.dropMemberLocked(ticketID, c.id)
	}
	c.rooms = make(map[int64]struct{})
}

func (h *Hub) dropMemberLocked(ticketID int64, handle string) {
	room, ok := h.rooms[ticketID]
	if !ok {
		return
	}
	delete(room, handle)
	if len(room) == 0 {
		delete(h.rooms, ticketID)
	}
}
