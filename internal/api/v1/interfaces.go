package v1

import (
	"context"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/history"
	"github.com/gosuda/syncboard/internal/pipeline"
	"github.com/gosuda/syncboard/internal/realtime"
)

// BoardService abstracts board, ticket and comment operations for handler
// testing. *pipeline.Pipeline satisfies this interface.
type BoardService interface {
	CreateBoard(ctx context.Context, in pipeline.BoardInput, c pipeline.Caller) (*domain.Board, error)
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	ListBoards(ctx context.Context) ([]*domain.Board, error)
	UpdateBoard(ctx context.Context, id string, patch pipeline.BoardPatch, c pipeline.Caller) (*domain.Board, error)
	DeleteBoard(ctx context.Context, id string, c pipeline.Caller) error

	CreateTicket(ctx context.Context, in pipeline.TicketInput, c pipeline.Caller) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, boardID string) ([]*domain.Ticket, error)
	UpdateTicket(ctx context.Context, id string, patch pipeline.TicketPatch, c pipeline.Caller) (*domain.Ticket, error)
	MoveTicket(ctx context.Context, id, column string, c pipeline.Caller) (*domain.Ticket, error)
	DeleteTicket(ctx context.Context, id string, c pipeline.Caller) error

	AddComment(ctx context.Context, ticketID, text string, c pipeline.Caller) (*domain.Comment, error)
	ListComments(ctx context.Context, ticketID string) ([]*domain.Comment, error)
	History(ctx context.Context, q history.Query) (*history.Page, error)
}

// BulkService abstracts the bulk coordinator for handler testing.
// *pipeline.Pipeline satisfies this interface.
type BulkService interface {
	BulkMove(ctx context.Context, ids []any, column string, c pipeline.Caller) (*pipeline.BulkResult, error)
	BulkAssign(ctx context.Context, ids []any, assignee *string, c pipeline.Caller) (*pipeline.BulkResult, error)
	BulkPriority(ctx context.Context, updates []pipeline.PriorityUpdate, c pipeline.Caller) (*pipeline.BulkResult, error)
}

// SessionService abstracts session management for handler testing.
// *session.Resolver satisfies this interface.
type SessionService interface {
	CreateSession(ctx context.Context, username string) (*domain.Session, error)
	Resolve(ctx context.Context, id string) (*domain.Session, error)
	UpdateUsername(ctx context.Context, id, username string) (*domain.Session, error)
	Destroy(ctx context.Context, id string) error
}

// StatsSource reports realtime fan-out statistics.
// *realtime.Metrics satisfies this interface.
type StatsSource interface {
	Snapshot() realtime.MetricsSnapshot
}
