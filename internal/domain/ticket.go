package domain

import (
	"context"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

type Ticket struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"board_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Assignee    *string   `json:"assignee"`
	Column      string    `json:"column"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can diff before/after states.
func (t *Ticket) Clone() *Ticket {
	c := *t
	if t.Assignee != nil {
		a := *t.Assignee
		c.Assignee = &a
	}
	return &c
}

type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)
	ListByBoard(ctx context.Context, boardID string) ([]*Ticket, error)
	CountByColumn(ctx context.Context, boardID, column string) (int, error)
	Update(ctx context.Context, t *Ticket) error
	// Delete removes the ticket and its comments. History is retained.
	Delete(ctx context.Context, id string) error
}
