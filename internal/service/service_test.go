package service

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const testMapsBase = "https://maps.example/?q="

type published struct {
	room    int64
	event   string
	payload any
}

// recordingBroadcaster captures publishes; room is 0 for global ones.
type recordingBroadcaster struct {
	mu     sync.Mutex
	calls  []published
	onRoom func(ticketID int64, payload any)
}

func (b *recordingBroadcaster) PublishToRoom(ticketID int64, event string, payload any) {
	if b.onRoom != nil {
		b.onRoom(ticketID, payload)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, published{room: ticketID, event: event, payload: payload})
}

func (b *recordingBroadcaster) PublishGlobal(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, published{event: event, payload: payload})
}

func (b *recordingBroadcaster) snapshot() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.calls...)
}

type fixture struct {
	store       *repository.MemoryStore
	broadcaster *recordingBroadcaster
	dispatcher  events.Dispatcher
	tickets     *TicketService
	chat        *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	broadcaster := &recordingBroadcaster{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	seq := realtime.NewSequencer()

	return &fixture{
		store:       store,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:  store.Tickets(),
			MessageRepo: store.Messages(),
			UserRepo:    store.Users(),
			Broadcaster: broadcaster,
			Dispatcher:  dispatcher,
			Sequencer:   seq,
			MapsBaseURL: testMapsBase,
		}),
		chat: NewChatService(ChatDependencies{
			TicketRepo:  store.Tickets(),
			MessageRepo: store.Messages(),
			Broadcaster: broadcaster,
			Dispatcher:  dispatcher,
			Sequencer:   seq,
		}),
	}
}

func (f *fixture) seedUser(t *testing.T, username string, address *string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Name: username, PasswordHash: "x", Address: address}
	if err := f.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *fixture) seedTicket(t *testing.T, owner *domain.User, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), owner.ID, TicketCreateInput{Title: title})
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func strPtr(s string) *string { return &s }

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.ToDomainError(err).Code
}
