// Package memory is an in-process implementation of the repository
// interfaces. It backs local development and the test suites; every method
// copies values in and out so callers never share memory with the store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/gosuda/syncboard/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	seq      map[string]int64 // per-table id sequences
	boards   map[string]*domain.Board
	tickets  map[string]*domain.Ticket
	comments map[string][]*domain.Comment      // by ticket ID
	history  map[string][]*domain.HistoryEntry // by ticket ID

	boardRepo   *BoardRepo
	ticketRepo  *TicketRepo
	commentRepo *CommentRepo
	historyRepo *HistoryRepo
}

func New() *Store {
	s := &Store{
		seq:      make(map[string]int64),
		boards:   make(map[string]*domain.Board),
		tickets:  make(map[string]*domain.Ticket),
		comments: make(map[string][]*domain.Comment),
		history:  make(map[string][]*domain.HistoryEntry),
	}
	s.boardRepo = &BoardRepo{s: s}
	s.ticketRepo = &TicketRepo{s: s}
	s.commentRepo = &CommentRepo{s: s}
	s.historyRepo = &HistoryRepo{s: s}
	return s
}

func (s *Store) Close() {}

func (s *Store) Boards() domain.BoardRepository     { return s.boardRepo }
func (s *Store) Tickets() domain.TicketRepository   { return s.ticketRepo }
func (s *Store) Comments() domain.CommentRepository { return s.commentRepo }
func (s *Store) History() domain.HistoryRepository  { return s.historyRepo }

// newID hands out decimal identifiers from one sequence per table, like a
// serial column would. Callers must hold s.mu.
func (s *Store) newID(table string) string {
	s.seq[table]++
	return strconv.FormatInt(s.seq[table], 10)
}

// ---------------------------------------------------------------------------
// Boards
// ---------------------------------------------------------------------------

type BoardRepo struct{ s *Store }

func cloneBoard(b *domain.Board) *domain.Board {
	c := *b
	c.Columns = slices.Clone(b.Columns)
	return &c
}

func (r *BoardRepo) Create(_ context.Context, b *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if b.ID == "" {
		b.ID = r.s.newID("boards")
	}
	if _, exists := r.s.boards[b.ID]; exists {
		return fmt.Errorf("memory.BoardRepo.Create: board %s: %w", b.ID, domain.ErrConflict)
	}
	r.s.boards[b.ID] = cloneBoard(b)
	return nil
}

func (r *BoardRepo) GetByID(_ context.Context, id string) (*domain.Board, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.boards[id]
	if !ok {
		return nil, fmt.Errorf("memory.BoardRepo.GetByID: board %s: %w", id, domain.ErrNotFound)
	}
	return cloneBoard(b), nil
}

func (r *BoardRepo) List(_ context.Context) ([]*domain.Board, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Board, 0, len(r.s.boards))
	for _, b := range r.s.boards {
		out = append(out, cloneBoard(b))
	}
	slices.SortFunc(out, func(a, b *domain.Board) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *BoardRepo) Update(_ context.Context, b *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[b.ID]; !ok {
		return fmt.Errorf("memory.BoardRepo.Update: board %s: %w", b.ID, domain.ErrNotFound)
	}
	r.s.boards[b.ID] = cloneBoard(b)
	return nil
}

func (r *BoardRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[id]; !ok {
		return fmt.Errorf("memory.BoardRepo.Delete: board %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.boards, id)

	for tid, t := range r.s.tickets {
		if t.BoardID == id {
			delete(r.s.tickets, tid)
			delete(r.s.comments, tid)
		}
	}
	// History of tickets that were deleted earlier is still keyed by ticket,
	// so match on the board recorded in each entry.
	for tid, entries := range r.s.history {
		if len(entries) > 0 && entries[0].BoardID == id {
			delete(r.s.history, tid)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tickets
// ---------------------------------------------------------------------------

type TicketRepo struct{ s *Store }

func (r *TicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[t.BoardID]; !ok {
		return fmt.Errorf("memory.TicketRepo.Create: board %s: %w", t.BoardID, domain.ErrNotFound)
	}
	if t.ID == "" {
		t.ID = r.s.newID("tickets")
	}
	r.s.tickets[t.ID] = t.Clone()
	return nil
}

func (r *TicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("memory.TicketRepo.GetByID: ticket %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

func (r *TicketRepo) ListByBoard(_ context.Context, boardID string) ([]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Ticket
	for _, t := range r.s.tickets {
		if t.BoardID == boardID {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Ticket) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareNumericIDs(a.ID, b.ID)
	})
	return out, nil
}

func (r *TicketRepo) CountByColumn(_ context.Context, boardID, column string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, t := range r.s.tickets {
		if t.BoardID == boardID && t.Column == column {
			n++
		}
	}
	return n, nil
}

func (r *TicketRepo) Update(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.tickets[t.ID]
	if !ok {
		return fmt.Errorf("memory.TicketRepo.Update: ticket %s: %w", t.ID, domain.ErrNotFound)
	}
	if existing.BoardID != t.BoardID {
		return fmt.Errorf("memory.TicketRepo.Update: ticket %s: board is immutable: %w", t.ID, domain.ErrInvalid)
	}
	r.s.tickets[t.ID] = t.Clone()
	return nil
}

func (r *TicketRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[id]; !ok {
		return fmt.Errorf("memory.TicketRepo.Delete: ticket %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.tickets, id)
	delete(r.s.comments, id)
	return nil
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

type CommentRepo struct{ s *Store }

func (r *CommentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[c.TicketID]; !ok {
		return fmt.Errorf("memory.CommentRepo.Create: ticket %s: %w", c.TicketID, domain.ErrNotFound)
	}
	if c.ID == "" {
		c.ID = r.s.newID("comments")
	}
	stored := *c
	r.s.comments[c.TicketID] = append(r.s.comments[c.TicketID], &stored)
	return nil
}

func (r *CommentRepo) ListByTicket(_ context.Context, ticketID string) ([]*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	src := r.s.comments[ticketID]
	out := make([]*domain.Comment, 0, len(src))
	for _, c := range src {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

type HistoryRepo struct{ s *Store }

func (r *HistoryRepo) Append(_ context.Context, e *domain.HistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entries := r.s.history[e.TicketID]
	e.ID = r.s.newID("history")
	e.Seq = int64(len(entries)) + 1
	stored := *e
	r.s.history[e.TicketID] = append(entries, &stored)
	return nil
}

func (r *HistoryRepo) List(_ context.Context, f domain.HistoryFilter) ([]*domain.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*domain.HistoryEntry, 0)
	for _, e := range r.s.history[f.TicketID] {
		if f.Field == "" || e.Field == f.Field {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	if f.Order == domain.OrderDesc {
		slices.Reverse(matched)
	}

	if f.Offset >= len(matched) {
		return []*domain.HistoryEntry{}, nil
	}
	end := len(matched)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], nil
}

func (r *HistoryRepo) Count(_ context.Context, ticketID, field string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.history[ticketID] {
		if field == "" || e.Field == field {
			n++
		}
	}
	return n, nil
}

func compareNumericIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr != nil || bErr != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}
