package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event names on the wire.
const (
	EventJoinTicketRoom  = "joinTicketRoom"
	EventLeaveTicketRoom = "leaveTicketRoom"
	EventSendMessage     = "sendMessage"

	EventNewMessage    = "newMessage"
	EventNewTicket     = "newTicket"
	EventTicketUpdated = "ticketUpdated"
	EventError         = "error"
)

// Envelope is the JSON frame exchanged over the event channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload tells a client which of its events was rejected.
type ErrorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Encode marshals an outbound frame.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses an inbound frame.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("missing event name")
	}
	return env, nil
}

// TicketID accepts a ticket id sent as a JSON number or a numeric string.
type TicketID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *TicketID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("invalid ticket id %s", string(b))
	}
	*id = TicketID(v)
	return nil
}

// SendMessagePayload is the body of an inbound sendMessage event.
type SendMessagePayload struct {
	TicketID TicketID `json:"ticketId"`
	Message  string   `json:"message"`
	Sender   string   `json:"sender"`
}
