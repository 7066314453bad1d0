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

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO boards (id, name, description, columns, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.Name, b.Description, b.Columns, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", err)
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id string) (*domain.Board, error) {
	var b domain.Board

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, columns, created_at, updated_at
		 FROM boards WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.Description, &b.Columns, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: board %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return &b, nil
}

func (r *BoardRepo) List(ctx context.Context) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, columns, created_at, updated_at
		 FROM boards ORDER BY created_at
		 LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.List: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Columns, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("boardRepo.List: scan: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.List: rows: %w", err)
	}

	return boards, nil
}

func (r *BoardRepo) Update(ctx context.Context, b *domain.Board) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE boards SET name = $1, description = $2, columns = $3, updated_at = $4
		 WHERE id = $5`,
		b.Name, b.Description, b.Columns, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.Update: board %s: %w", b.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes the board with its tickets, comments and history in one
// transaction.
func (r *BoardRepo) Delete(ctx context.Context, id string) error {
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_history WHERE board_id = $1`, id); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM comments WHERE ticket_id IN (SELECT id FROM tickets WHERE board_id = $1)`, id,
		); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tickets WHERE board_id = $1`, id); err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("boardRepo.Delete: %w", err)
	}

	return nil
}
