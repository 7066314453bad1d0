// Package history records and pages through the per-ticket audit trail.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/gosuda/syncboard/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Query selects a page of one ticket's history.
type Query struct {
	TicketID string
	Field    string
	Order    domain.SortOrder
	Limit    int
	Offset   int
}

// Page is one slice of a ticket's history plus the total match count.
type Page struct {
	Entries []*domain.HistoryEntry `json:"entries"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type Recorder struct {
	repo domain.HistoryRepository
	now  func() time.Time
}

func NewRecorder(repo domain.HistoryRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// Record appends entry. The write completes before Record returns.
func (r *Recorder) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.TicketID == "" {
		return fmt.Errorf("history.Recorder.Record: ticket id is required: %w", domain.ErrInvalid)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("history.Recorder.Record: %w", err)
	}
	return nil
}

// Query returns a page of history. An unknown ticket yields an empty page.
func (r *Recorder) Query(ctx context.Context, q Query) (*Page, error) {
	switch q.Order {
	case "":
		q.Order = domain.OrderAsc
	case domain.OrderAsc, domain.OrderDesc:
	default:
		return nil, fmt.Errorf("history.Recorder.Query: unknown order %q: %w", q.Order, domain.ErrInvalid)
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("history.Recorder.Query: offset must be >= 0: %w", domain.ErrInvalid)
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}

	total, err := r.repo.Count(ctx, q.TicketID, q.Field)
	if err != nil {
		return nil, fmt.Errorf("history.Recorder.Query: count: %w", err)
	}

	entries, err := r.repo.List(ctx, domain.HistoryFilter{
		TicketID: q.TicketID,
		Field:    q.Field,
		Order:    q.Order,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("history.Recorder.Query: list: %w", err)
	}
	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}

	return &Page{Entries: entries, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}
