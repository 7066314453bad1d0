// Package postgres implements the repository interfaces on PostgreSQL via
// pgxpool. The expected schema is in schema.sql.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool     *pgxpool.Pool
	boards   *BoardRepo
	tickets  *TicketRepo
	comments *CommentRepo
	history  *HistoryRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		boards:   NewBoardRepo(pool),
		tickets:  NewTicketRepo(pool),
		comments: NewCommentRepo(pool),
		history:  NewHistoryRepo(pool),
	}, nil
}

// EnsureSchema creates any missing tables. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Store.EnsureSchema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Boards() domain.BoardRepository     { return s.boards }
func (s *Store) Tickets() domain.TicketRepository   { return s.tickets }
func (s *Store) Comments() domain.CommentRepository { return s.comments }
func (s *Store) History() domain.HistoryRepository  { return s.history }

// withTx runs fn inside a transaction, rolling back on error and committing
// on success.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn().Err(err).Msg("failed to rollback transaction")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// isForeignKeyViolation reports whether err is a PostgreSQL
// foreign_key_violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
