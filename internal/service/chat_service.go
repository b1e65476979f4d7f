package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const messagePreviewLength = 120

// ChatService persists chat messages and relays them to the ticket's room.
type ChatService struct {
	tickets     repository.TicketRepository
	messages    repository.ChatMessageRepository
	broadcaster Broadcaster
	dispatcher  events.Dispatcher
	sequencer   *realtime.Sequencer
	logger      *zap.Logger
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.ChatMessageRepository
	Broadcaster Broadcaster
	Dispatcher  events.Dispatcher
	Sequencer   *realtime.Sequencer
	Logger      *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		broadcaster: deps.Broadcaster,
		dispatcher:  deps.Dispatcher,
		sequencer:   deps.Sequencer,
		logger:      logger.With(zap.String("component", "chat_service")),
	}
}

// SendMessage stores a message and, only once the write is acknowledged,
// publishes it to the ticket's room. actor is nil for anonymous senders.
func (s *ChatService) SendMessage(ctx context.Context, ticketID int64, rawSender, text string, actor *domain.Identity) (*domain.ChatMessage, error) {
	sender, ok := domain.ParseMessageSender(strings.TrimSpace(rawSender))
	if !ok {
		return nil, apperrors.NewValidationError("invalid sender", map[string]any{
			"sender":  rawSender,
			"allowed": []domain.MessageSender{domain.SenderCustomer, domain.SenderAdmin, domain.SenderBot},
		})
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}

	msg := &domain.ChatMessage{TicketID: ticketID, Sender: sender, Message: body}
	err := s.sequencer.Do(ticketID, func() error {
		if err := s.messages.Create(ctx, msg); err != nil {
			s.logger.Error("persist chat message failed",
				zap.Int64("ticket_id", ticketID),
				zap.String("sender", string(sender)),
				zap.Error(err))
			return apperrors.FromStore(err, "ticket")
		}
		if s.broadcaster != nil {
			s.broadcaster.PublishToRoom(ticketID, realtime.EventNewMessage, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evActor := events.Actor{Sender: sender}
	if actor != nil {
		evActor = userActor(actor.UserID)
		evActor.Sender = sender
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventChatMessageAdded,
		TicketID: ticketID,
		Actor:    evActor,
		Payload: events.ChatMessageAddedPayload{
			MessageID:   msg.ID,
			Sender:      msg.Sender,
			BodyPreview: stringPreview(msg.Message, messagePreviewLength),
		},
	})
	return msg, nil
}

// ListMessages returns a ticket's thread, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, ticketID int64) ([]domain.ChatMessage, error) {
	exists, err := s.tickets.Exists(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	if !exists {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticketId": ticketID})
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	return nonNilMessages(msgs), nil
}
