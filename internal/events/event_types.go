package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventChatMessageAdded    EventType = "chat_message_added"
)

// Actor encapsulates actor metadata for an event. UserID is nil for anonymous
// event-channel senders and unauthenticated status updates.
type Actor struct {
	UserID *int64               `json:"userId,omitempty"`
	Sender domain.MessageSender `json:"sender,omitempty"`
}

// Event represents a domain event emitted by services after a committed write.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticketId"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string              `json:"title"`
	Status   domain.TicketStatus `json:"status"`
	Address  *string             `json:"address,omitempty"`
	MapsLink *string             `json:"mapsLink,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
}

// ChatMessageAddedPayload payload.
type ChatMessageAddedPayload struct {
	MessageID   int64                `json:"messageId"`
	Sender      domain.MessageSender `json:"sender"`
	BodyPreview string               `json:"bodyPreview"`
}
