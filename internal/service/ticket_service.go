package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Broadcaster pushes committed state to connected clients.
type Broadcaster interface {
	PublishToRoom(ticketID int64, event string, payload any)
	PublishGlobal(event string, payload any)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.ChatMessageRepository
	users       repository.UserRepository
	broadcaster Broadcaster
	dispatcher  events.Dispatcher
	sequencer   *realtime.Sequencer
	mapsBaseURL string
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.ChatMessageRepository
	UserRepo    repository.UserRepository
	Broadcaster Broadcaster
	Dispatcher  events.Dispatcher
	Sequencer   *realtime.Sequencer
	MapsBaseURL string
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Address     *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		users:       deps.UserRepo,
		broadcaster: deps.Broadcaster,
		dispatcher:  deps.Dispatcher,
		sequencer:   deps.Sequencer,
		mapsBaseURL: deps.MapsBaseURL,
		logger:      logger.With(zap.String("component", "ticket_service")),
	}
}

// CreateTicket creates a ticket for a user and announces it to every client.
func (s *TicketService) CreateTicket(ctx context.Context, userID int64, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}

	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore(err, "user")
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		UserID:      owner.ID,
	}
	if address := resolveAddress(input.Address, owner.Address); address != "" {
		link := MapsLink(s.mapsBaseURL, address)
		ticket.Address = &address
		ticket.MapsLink = &link
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Error("create ticket failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, apperrors.FromStore(err, "user")
	}

	created, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.broadcast(0, realtime.EventNewTicket, created)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: created.ID,
		Actor:    userActor(userID),
		Payload: events.TicketCreatedPayload{
			Title:    created.Title,
			Status:   created.Status,
			Address:  created.Address,
			MapsLink: created.MapsLink,
		},
	})
	return created, nil
}

// ListTickets returns every ticket, newest first, with thread and owner.
func (s *TicketService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	if len(tickets) == 0 {
		return []domain.Ticket{}, nil
	}

	ids := make([]int64, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	threads, err := s.messages.ListByTickets(ctx, ids)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	for i := range tickets {
		tickets[i].Messages = nonNilMessages(threads[tickets[i].ID])
	}
	return tickets, nil
}

// GetTicket fetches one ticket with its thread and owner.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromStore(err, "ticket")
	}
	ticket.Messages = nonNilMessages(msgs)
	return ticket, nil
}

// TicketExists reports whether a ticket row is present.
func (s *TicketService) TicketExists(ctx context.Context, ticketID int64) (bool, error) {
	ok, err := s.tickets.Exists(ctx, ticketID)
	if err != nil {
		return false, apperrors.FromStore(err, "ticket")
	}
	return ok, nil
}

// UpdateStatus changes a ticket's status and announces the new state once to
// every client. actor is nil for anonymous callers.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID int64, rawStatus string, actor *domain.Identity) (*domain.Ticket, error) {
	status, ok := domain.ParseTicketStatus(strings.TrimSpace(rawStatus))
	if !ok {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  rawStatus,
			"allowed": []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
		})
	}

	var (
		updated   *domain.Ticket
		oldStatus domain.TicketStatus
	)
	err := s.sequencer.Do(ticketID, func() error {
		current, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return apperrors.FromStore(err, "ticket")
		}
		oldStatus = current.Status
		if err := s.tickets.UpdateStatus(ctx, ticketID, status); err != nil {
			s.logger.Error("update status failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
			return apperrors.FromStore(err, "ticket")
		}
		updated, err = s.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		s.broadcast(0, realtime.EventTicketUpdated, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	evActor := events.Actor{}
	if actor != nil {
		evActor = userActor(actor.UserID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		Actor:    evActor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: updated.Status,
		},
	})
	return updated, nil
}

// MapsLink builds the map-search link for an address.
func MapsLink(baseURL, address string) string {
	return baseURL + url.QueryEscape(address)
}

// resolveAddress prefers the supplied address and falls back to the owner's.
func resolveAddress(supplied, stored *string) string {
	if supplied != nil {
		if trimmed := strings.TrimSpace(*supplied); trimmed != "" {
			return trimmed
		}
	}
	if stored != nil {
		return strings.TrimSpace(*stored)
	}
	return ""
}

// broadcast publishes to a room when ticketID is set, otherwise to everyone.
func (s *TicketService) broadcast(ticketID int64, event string, payload any) {
	if s.broadcaster == nil {
		return
	}
	if ticketID > 0 {
		s.broadcaster.PublishToRoom(ticketID, event, payload)
		return
	}
	s.broadcaster.PublishGlobal(event, payload)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func nonNilMessages(msgs []domain.ChatMessage) []domain.ChatMessage {
	if msgs == nil {
		return []domain.ChatMessage{}
	}
	return msgs
}

func userActor(userID int64) events.Actor {
	id := userID
	return events.Actor{UserID: &id}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
