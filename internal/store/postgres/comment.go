package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/syncboard/internal/domain"
)

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO comments (id, ticket_id, author, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TicketID, c.Author, c.Text, c.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("commentRepo.Create: ticket %s: %w", c.TicketID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("commentRepo.Create: %w", err)
	}

	return nil
}

func (r *CommentRepo) ListByTicket(ctx context.Context, ticketID string) ([]*domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, ticket_id, author, body, created_at
		 FROM comments WHERE ticket_id = $1
		 ORDER BY created_at, id`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("commentRepo.ListByTicket: %w", err)
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("commentRepo.ListByTicket: scan: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commentRepo.ListByTicket: rows: %w", err)
	}

	return comments, nil
}
