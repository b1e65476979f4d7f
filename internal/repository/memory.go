package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/support-desk/internal/domain"
)

// MemoryStore is a process-local stand-in for Postgres. It reproduces the
// constraints the service relies on (unique usernames, foreign keys, status
// default) and reports violations with the same pgconn error codes.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[int64]domain.User
	tickets  map[int64]domain.Ticket
	messages map[int64][]domain.ChatMessage
	userSeq  int64
	tickSeq  int64
	msgSeq   int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    make(map[int64]domain.User),
		tickets:  make(map[int64]domain.Ticket),
		messages: make(map[int64][]domain.ChatMessage),
	}
}

// SetClock overrides the timestamp source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Messages exposes the store as a ChatMessageRepository.
func (s *MemoryStore) Messages() ChatMessageRepository { return memoryMessages{s} }

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", Message: "foreign key violation", ConstraintName: constraint}
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return &pgconn.PgError{Code: "23505", Message: "duplicate key", ConstraintName: "users_username_key"}
		}
	}
	r.s.userSeq++
	user.ID = r.s.userSeq
	user.CreatedAt = r.s.now()
	if user.Role == "" {
		user.Role = domain.UserRoleCustomer
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[ticket.UserID]; !ok {
		return foreignKeyViolation("tickets_user_id_fkey")
	}
	r.s.tickSeq++
	ticket.ID = r.s.tickSeq
	ticket.Status = domain.TicketStatusOpen
	ticket.CreatedAt = r.s.now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	stored.Messages = nil
	stored.User = nil
	r.s.tickets[ticket.ID] = stored
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.withOwner(ticket), nil
}

func (r memoryTickets) List(_ context.Context) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Ticket, 0, len(r.s.tickets))
	for _, ticket := range r.s.tickets {
		result = append(result, *r.withOwner(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r memoryTickets) UpdateStatus(_ context.Context, id int64, status domain.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	ticket.UpdatedAt = r.s.now()
	r.s.tickets[id] = ticket
	return nil
}

func (r memoryTickets) Exists(_ context.Context, id int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.tickets[id]
	return ok, nil
}

// withOwner must be called with the read lock held.
func (r memoryTickets) withOwner(ticket domain.Ticket) *domain.Ticket {
	if owner, ok := r.s.users[ticket.UserID]; ok {
		owner.PasswordHash = ""
		ticket.User = &owner
	}
	return &ticket
}

type memoryMessages struct{ s *MemoryStore }

func (r memoryMessages) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[msg.TicketID]; !ok {
		return foreignKeyViolation("chat_messages_ticket_id_fkey")
	}
	r.s.msgSeq++
	msg.ID = r.s.msgSeq
	msg.CreatedAt = r.s.now()
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], *msg)
	return nil
}

func (r memoryMessages) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChatMessage, error) {
	grouped, err := r.ListByTickets(ctx, []int64{ticketID})
	if err != nil {
		return nil, err
	}
	return grouped[ticketID], nil
}

func (r memoryMessages) ListByTickets(_ context.Context, ticketIDs []int64) (map[int64][]domain.ChatMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make(map[int64][]domain.ChatMessage, len(ticketIDs))
	for _, id := range ticketIDs {
		msgs := r.s.messages[id]
		if len(msgs) == 0 {
			continue
		}
		copied := append([]domain.ChatMessage(nil), msgs...)
		sort.SliceStable(copied, func(i, j int) bool {
			if copied[i].CreatedAt.Equal(copied[j].CreatedAt) {
				return copied[i].ID < copied[j].ID
			}
			return copied[i].CreatedAt.Before(copied[j].CreatedAt)
		})
		result[id] = copied
	}
	return result, nil
}
