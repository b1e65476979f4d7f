package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ParseTicketStatus validates a status name against the closed set.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch status := TicketStatus(raw); status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return status, true
	}
	return "", false
}

// Ticket is the aggregate for support requests. Messages and User are populated
// by the service layer before the ticket leaves it.
type Ticket struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      TicketStatus  `json:"status"`
	UserID      int64         `json:"userId"`
	Address     *string       `json:"address"`
	MapsLink    *string       `json:"mapsLink"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Messages    []ChatMessage `json:"messages"`
	User        *User         `json:"user"`
}
