package domain

import (
	"context"
	"time"
)

type HistoryKind string

const (
	HistoryCreated     HistoryKind = "created"
	HistoryUpdated     HistoryKind = "updated"
	HistoryMoved       HistoryKind = "moved"
	HistoryDeleted     HistoryKind = "deleted"
	HistoryBulkUpdated HistoryKind = "bulk_updated"
	HistoryCommented   HistoryKind = "commented"
)

// HistoryEntry is an immutable audit record of one applied ticket mutation.
type HistoryEntry struct {
	ID        string      `json:"id"`
	TicketID  string      `json:"ticket_id"`
	BoardID   string      `json:"board_id"`
	Kind      HistoryKind `json:"kind"`
	Field     string      `json:"field,omitempty"`
	FromValue string      `json:"from_value,omitempty"`
	ToValue   string      `json:"to_value,omitempty"`
	Actor     string      `json:"actor"`
	Seq       int64       `json:"seq"`
	CreatedAt time.Time   `json:"created_at"`
}

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// HistoryFilter selects a page of one ticket's history.
type HistoryFilter struct {
	TicketID string
	Field    string // empty matches every field
	Order    SortOrder
	Limit    int
	Offset   int
}

type HistoryRepository interface {
	// Append stores entry and assigns its ID and per-ticket Seq.
	Append(ctx context.Context, entry *HistoryEntry) error
	List(ctx context.Context, f HistoryFilter) ([]*HistoryEntry, error)
	Count(ctx context.Context, ticketID, field string) (int, error)
}
