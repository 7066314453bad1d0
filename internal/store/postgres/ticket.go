package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/syncboard/internal/domain"
)

const ticketColumns = `id, board_id, title, description, priority, assignee, board_column, created_by, created_at, updated_at`

type TicketRepo struct {
	pool *pgxpool.Pool
}

func NewTicketRepo(pool *pgxpool.Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.BoardID, t.Title, t.Description, t.Priority, t.Assignee,
		t.Column, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("ticketRepo.Create: board %s: %w", t.BoardID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("ticketRepo.Create: %w", err)
	}

	return nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var t domain.Ticket

	err := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.BoardID, &t.Title, &t.Description, &t.Priority, &t.Assignee,
		&t.Column, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticketRepo.GetByID: ticket %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.GetByID: %w", err)
	}

	return &t, nil
}

func (r *TicketRepo) ListByBoard(ctx context.Context, boardID string) ([]*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets WHERE board_id = $1
		 ORDER BY created_at, id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows, "ticketRepo.ListByBoard")
}

func (r *TicketRepo) CountByColumn(ctx context.Context, boardID, column string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE board_id = $1 AND board_column = $2`,
		boardID, column,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ticketRepo.CountByColumn: %w", err)
	}

	return n, nil
}

// Update writes every mutable field. The board is part of the match, so an
// attempt to move the ticket to another board is rejected.
func (r *TicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET title = $1, description = $2, priority = $3, assignee = $4,
		        board_column = $5, updated_at = $6
		 WHERE id = $7 AND board_id = $8`,
		t.Title, t.Description, t.Priority, t.Assignee,
		t.Column, t.UpdatedAt, t.ID, t.BoardID,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.Update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, t.ID); err != nil {
		return fmt.Errorf("ticketRepo.Update: %w", err)
	}
	return fmt.Errorf("ticketRepo.Update: ticket %s: board is immutable: %w", t.ID, domain.ErrInvalid)
}

// Delete removes the ticket; comments follow through the foreign key.
func (r *TicketRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tickets WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticketRepo.Delete: ticket %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func scanTickets(rows pgx.Rows, caller string) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(
			&t.ID, &t.BoardID, &t.Title, &t.Description, &t.Priority, &t.Assignee,
			&t.Column, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tickets, nil
}
