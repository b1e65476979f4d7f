package domain

import "time"

// MessageSender indicates who authored a chat message.
type MessageSender string

const (
	SenderCustomer MessageSender = "customer"
	SenderAdmin    MessageSender = "admin"
	SenderBot      MessageSender = "bot"
)

// ParseMessageSender validates a sender name.
func ParseMessageSender(raw string) (MessageSender, bool) {
	switch sender := MessageSender(raw); sender {
	case SenderCustomer, SenderAdmin, SenderBot:
		return sender, true
	}
	return "", false
}

// SenderForRole picks the sender a user of the given role writes as.
func SenderForRole(role UserRole) MessageSender {
	if role == UserRoleAdmin {
		return SenderAdmin
	}
	return SenderCustomer
}

// ChatMessage is one append-only entry in a ticket thread.
type ChatMessage struct {
	ID        int64         `json:"id"`
	TicketID  int64         `json:"ticketId"`
	Sender    MessageSender `json:"sender"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
}
