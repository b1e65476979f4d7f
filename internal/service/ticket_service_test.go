package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
)

func TestCreateTicket_AddressResolution(t *testing.T) {
	tests := []struct {
		name     string
		stored   *string
		supplied *string
		want     string
	}{
		{"supplied wins", strPtr("Home Rd 1"), strPtr("  12 Main St "), "12 Main St"},
		{"blank supplied falls back", strPtr(" Home Rd 1 "), strPtr("   "), "Home Rd 1"},
		{"nil supplied falls back", strPtr("Home Rd 1"), nil, "Home Rd 1"},
		{"nothing known", nil, nil, ""},
		{"blank stored", strPtr("  "), nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			owner := f.seedUser(t, "alice", tt.stored)

			ticket, err := f.tickets.CreateTicket(context.Background(), owner.ID, TicketCreateInput{
				Title:   "Leaking tap",
				Address: tt.supplied,
			})
			if err != nil {
				t.Fatalf("CreateTicket: %v", err)
			}

			if tt.want == "" {
				if ticket.Address != nil || ticket.MapsLink != nil {
					t.Fatalf("expected no address, got %v / %v", ticket.Address, ticket.MapsLink)
				}
				return
			}
			if ticket.Address == nil || *ticket.Address != tt.want {
				t.Fatalf("address: got %v, want %q", ticket.Address, tt.want)
			}
			wantLink := testMapsBase + url.QueryEscape(tt.want)
			if ticket.MapsLink == nil || *ticket.MapsLink != wantLink {
				t.Fatalf("mapsLink: got %v, want %q", ticket.MapsLink, wantLink)
			}
		})
	}
}

func TestCreateTicket_PersistsAndBroadcastsGlobally(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "alice", nil)

	var created []events.Event
	f.dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})

	ticket, err := f.tickets.CreateTicket(context.Background(), owner.ID, TicketCreateInput{
		Title:       "  Broken heater ",
		Description: "no heat since monday",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Title != "Broken heater" || ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if ticket.Messages == nil || len(ticket.Messages) != 0 {
		t.Fatalf("messages should be an empty list, got %#v", ticket.Messages)
	}
	if ticket.User == nil || ticket.User.Username != "alice" {
		t.Fatalf("owner not attached: %+v", ticket.User)
	}

	calls := f.broadcaster.snapshot()
	if len(calls) != 1 || calls[0].event != realtime.EventNewTicket || calls[0].room != 0 {
		t.Fatalf("expected one global newTicket, got %+v", calls)
	}
	if len(created) != 1 || created[0].TicketID != ticket.ID || created[0].ID == "" {
		t.Fatalf("expected one ticket_created event, got %+v", created)
	}
}

func TestCreateTicket_Validation(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "alice", nil)

	_, err := f.tickets.CreateTicket(context.Background(), owner.ID, TicketCreateInput{Title: "   "})
	if got := errorCode(err); got != "VALIDATION_FAILED" {
		t.Fatalf("code: got %q, want VALIDATION_FAILED", got)
	}
	if len(f.broadcaster.snapshot()) != 0 {
		t.Fatal("nothing should be broadcast for a rejected ticket")
	}

	_, err = f.tickets.CreateTicket(context.Background(), 999, TicketCreateInput{Title: "orphan"})
	if got := errorCode(err); got != "NOT_FOUND" {
		t.Fatalf("unknown owner: got %q, want NOT_FOUND", got)
	}
}

func TestListTickets_NewestFirstWithThreads(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	f.store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	owner := f.seedUser(t, "alice", nil)
	older := f.seedTicket(t, owner, "older")
	newer := f.seedTicket(t, owner, "newer")

	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		if _, err := f.chat.SendMessage(ctx, older.ID, "customer", text, nil); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	list, err := f.tickets.ListTickets(ctx)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("order: %+v", list)
	}
	if list[0].Messages == nil || len(list[0].Messages) != 0 {
		t.Fatalf("newer ticket should have an empty thread, got %#v", list[0].Messages)
	}
	if len(list[1].Messages) != 2 || list[1].Messages[0].Message != "first" {
		t.Fatalf("older thread: %+v", list[1].Messages)
	}
}

func TestListTickets_EmptyIsNotNil(t *testing.T) {
	list, err := newFixture(t).tickets.ListTickets(context.Background())
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("got %#v", list)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	_, err := newFixture(t).tickets.GetTicket(context.Background(), 42)
	if got := errorCode(err); got != "NOT_FOUND" {
		t.Fatalf("code: got %q", got)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "alice", nil)
	ticket := f.seedTicket(t, owner, "Broken heater")
	ctx := context.Background()

	var changes []events.TicketStatusChangedPayload
	f.dispatcher.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, e events.Event) error {
		changes = append(changes, e.Payload.(events.TicketStatusChangedPayload))
		return nil
	})

	before := len(f.broadcaster.snapshot())
	updated, err := f.tickets.UpdateStatus(ctx, ticket.ID, "resolved", &domain.Identity{UserID: owner.ID})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != domain.TicketStatusResolved {
		t.Fatalf("status: got %s", updated.Status)
	}

	calls := f.broadcaster.snapshot()[before:]
	if len(calls) != 1 || calls[0].event != realtime.EventTicketUpdated || calls[0].room != 0 {
		t.Fatalf("expected exactly one global ticketUpdated, got %+v", calls)
	}
	if len(changes) != 1 || changes[0].OldStatus != domain.TicketStatusOpen || changes[0].NewStatus != domain.TicketStatusResolved {
		t.Fatalf("status change events: %+v", changes)
	}

	stored, err := f.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if stored.Status != domain.TicketStatusResolved {
		t.Fatalf("stored status: got %s", stored.Status)
	}
}

func TestUpdateStatus_Rejections(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "alice", nil)
	ticket := f.seedTicket(t, owner, "Broken heater")
	before := len(f.broadcaster.snapshot())

	tests := []struct {
		name     string
		id       int64
		status   string
		wantCode string
	}{
		{"unknown status", ticket.ID, "archived", "VALIDATION_FAILED"},
		{"empty status", ticket.ID, "", "VALIDATION_FAILED"},
		{"missing ticket", ticket.ID + 100, "closed", "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tickets.UpdateStatus(context.Background(), tt.id, tt.status, nil)
			if got := errorCode(err); got != tt.wantCode {
				t.Fatalf("code: got %q, want %q", got, tt.wantCode)
			}
		})
	}
	if len(f.broadcaster.snapshot()) != before {
		t.Fatal("rejected updates must not broadcast")
	}
}

func TestTicketExists(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "alice", nil)
	ticket := f.seedTicket(t, owner, "x")

	ok, err := f.tickets.TicketExists(context.Background(), ticket.ID)
	if err != nil || !ok {
		t.Fatalf("existing: ok=%v err=%v", ok, err)
	}
	ok, err = f.tickets.TicketExists(context.Background(), ticket.ID+1)
	if err != nil || ok {
		t.Fatalf("missing: ok=%v err=%v", ok, err)
	}
}

func TestMapsLink(t *testing.T) {
	got := MapsLink("https://www.google.com/maps/search/?api=1&query=", "10 Downing St, London")
	want := "https://www.google.com/maps/search/?api=1&query=10+Downing+St%2C+London"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStringPreview(t *testing.T) {
	if got := stringPreview("  short  ", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := stringPreview("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("got %q", got)
	}
}
