package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/syncboard/internal/domain"
)

type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Append assigns the next per-ticket sequence number. Writers of one ticket
// are serialized by the caller; the unique (ticket_id, seq) constraint
// catches any that are not.
func (r *HistoryRepo) Append(ctx context.Context, e *domain.HistoryEntry) error {
	e.ID = uuid.NewString()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO ticket_history (id, ticket_id, board_id, kind, field, from_value, to_value, actor, seq, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		         COALESCE((SELECT max(seq) FROM ticket_history WHERE ticket_id = $2), 0) + 1,
		         $9)
		 RETURNING seq`,
		e.ID, e.TicketID, e.BoardID, e.Kind, e.Field, e.FromValue, e.ToValue, e.Actor, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("historyRepo.Append: %w", err)
	}

	return nil
}

func (r *HistoryRepo) List(ctx context.Context, f domain.HistoryFilter) ([]*domain.HistoryEntry, error) {
	order := "ASC"
	if f.Order == domain.OrderDesc {
		order = "DESC"
	}
	limit := any(nil) // NULL means no limit
	if f.Limit > 0 {
		limit = f.Limit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, ticket_id, board_id, kind, field, from_value, to_value, actor, seq, created_at
		 FROM ticket_history
		 WHERE ticket_id = $1 AND ($2 = '' OR field = $2)
		 ORDER BY seq `+order+`
		 LIMIT $3 OFFSET $4`,
		f.TicketID, f.Field, limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("historyRepo.List: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows, "historyRepo.List")
}

func (r *HistoryRepo) Count(ctx context.Context, ticketID, field string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM ticket_history WHERE ticket_id = $1 AND ($2 = '' OR field = $2)`,
		ticketID, field,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("historyRepo.Count: %w", err)
	}

	return n, nil
}

func scanHistory(rows pgx.Rows, caller string) ([]*domain.HistoryEntry, error) {
	entries := make([]*domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.TicketID, &e.BoardID, &e.Kind, &e.Field,
			&e.FromValue, &e.ToValue, &e.Actor, &e.Seq, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}
