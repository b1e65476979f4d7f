package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatMessageRepository manages ticket chat threads.
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChatMessage, error)
	ListByTickets(ctx context.Context, ticketIDs []int64) (map[int64][]domain.ChatMessage, error)
}

type chatMessageRepository struct {
	pool *pgxpool.Pool
}

// NewChatMessageRepository builds repository.
func NewChatMessageRepository(pool *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{pool: pool}
}

// Create returns only after the row is committed; a missing ticket surfaces as a
// foreign key violation.
func (r *chatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (ticket_id, sender, message)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.Sender,
		msg.Message,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *chatMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChatMessage, error) {
	grouped, err := r.ListByTickets(ctx, []int64{ticketID})
	if err != nil {
		return nil, err
	}
	return grouped[ticketID], nil
}

func (r *chatMessageRepository) ListByTickets(ctx context.Context, ticketIDs []int64) (map[int64][]domain.ChatMessage, error) {
	result := make(map[int64][]domain.ChatMessage, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT id, ticket_id, sender, message, created_at
        FROM chat_messages WHERE ticket_id = ANY($1) ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Sender,
			&msg.Message,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result[msg.TicketID] = append(result[msg.TicketID], msg)
	}
	return result, rows.Err()
}
