// Package pipeline applies board, ticket and comment mutations. Every
// mutation follows the same order of effects: validate, write to the store,
// record history, publish the change event.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/history"
	"github.com/gosuda/syncboard/internal/realtime"
)

const (
	maxTitleLen   = 500
	maxNameLen    = 200
	maxCommentLen = 10000
)

// DataStore abstracts the repository accessor pattern.
// *memory.Store and *postgres.Store satisfy this interface.
type DataStore interface {
	Boards() domain.BoardRepository
	Tickets() domain.TicketRepository
	Comments() domain.CommentRepository
	History() domain.HistoryRepository
}

// Attributor resolves the display name credited for a mutation.
// *session.Resolver satisfies this interface.
type Attributor interface {
	Attribute(ctx context.Context, sessionID, supplied string) string
}

// Publisher accepts change events for fan-out.
// *realtime.Broadcaster satisfies this interface.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// Caller identifies who is asking for a mutation.
type Caller struct {
	SessionID string
	Author    string // used when the session does not resolve
}

type Pipeline struct {
	store    DataStore
	attr     Attributor
	pub      Publisher
	recorder *history.Recorder
	locks    *kmutex.Kmutex
	clock    clock.Clock
}

func New(store DataStore, attr Attributor, pub Publisher, clk clock.Clock) *Pipeline {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Pipeline{
		store:    store,
		attr:     attr,
		pub:      pub,
		recorder: history.NewRecorder(store.History()),
		locks:    kmutex.New(),
		clock:    clk,
	}
}

func (p *Pipeline) actor(ctx context.Context, c Caller) string {
	return p.attr.Attribute(ctx, c.SessionID, c.Author)
}

func (p *Pipeline) now() time.Time { return p.clock.Now().UTC() }

// lockTicket serializes mutations of one ticket. The returned func unlocks.
func (p *Pipeline) lockTicket(id string) func() {
	key := "ticket:" + id
	p.locks.Lock(key)
	return func() { p.locks.Unlock(key) }
}

// lockBoard serializes changes to a board's column set against every ticket
// write that validates a column. Lock order is board, then ticket.
func (p *Pipeline) lockBoard(id string) func() {
	key := "board:" + id
	p.locks.Lock(key)
	return func() { p.locks.Unlock(key) }
}

// lockTicketOnBoard locks the ticket's board and then the ticket, and returns
// both as read under those locks. The board id of a ticket never changes, so
// the unlocked first read only picks the board key.
func (p *Pipeline) lockTicketOnBoard(ctx context.Context, id string) (*domain.Ticket, *domain.Board, func(), error) {
	t, err := p.store.Tickets().GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	unlockBoard := p.lockBoard(t.BoardID)
	unlockTicket := p.lockTicket(id)
	unlock := func() {
		unlockTicket()
		unlockBoard()
	}

	t, err = p.store.Tickets().GetByID(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	b, err := p.store.Boards().GetByID(ctx, t.BoardID)
	if err != nil {
		unlock()
		return nil, nil, nil, fmt.Errorf("board %s: %w", t.BoardID, err)
	}
	return t, b, unlock, nil
}

// record appends a history entry. The mutation it describes is already
// applied, so a failure is logged and not returned.
func (p *Pipeline) record(ctx context.Context, e *domain.HistoryEntry) {
	e.CreatedAt = p.now()
	if err := p.recorder.Record(ctx, e); err != nil {
		log.Error().Err(err).
			Str("ticket_id", e.TicketID).
			Str("kind", string(e.Kind)).
			Msg("failed to record history")
	}
}

// publish hands ev to the broadcaster. Delivery problems never fail the
// mutation, and a cancelled request must not drop the event.
func (p *Pipeline) publish(ctx context.Context, ev realtime.Event) {
	if err := p.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).
			Str("event", string(ev.Kind())).
			Str("board_id", ev.BoardID()).
			Msg("failed to publish event")
	}
}

func requireText(field, v string, maxLen int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s is required: %w", field, domain.ErrInvalid)
	}
	if utf8.RuneCountInString(v) > maxLen {
		return "", fmt.Errorf("%s must be at most %d characters: %w", field, maxLen, domain.ErrInvalid)
	}
	return v, nil
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required: %w", kind, domain.ErrInvalid)
	}
	return nil
}

func assigneeValue(a *string) string {
	if a == nil {
		return ""
	}
	return *a
}

// normalizeAssignee maps a blank assignee to nil (unassigned).
func normalizeAssignee(a *string) *string {
	if a == nil {
		return nil
	}
	v := strings.TrimSpace(*a)
	if v == "" {
		return nil
	}
	return &v
}

// ---------------------------------------------------------------------------
// Boards
// ---------------------------------------------------------------------------

type BoardInput struct {
	Name        string
	Description string
	Columns     []string
}

// BoardPatch carries a partial board update. Nil fields are left unchanged.
type BoardPatch struct {
	Name        *string
	Description *string
	Columns     []string
}

func (p *Pipeline) CreateBoard(ctx context.Context, in BoardInput, c Caller) (*domain.Board, error) {
	name, err := requireText("board name", in.Name, maxNameLen)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateBoard: %w", err)
	}
	columns, err := domain.NormalizeColumns(in.Columns)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateBoard: %w", err)
	}

	actor := p.actor(ctx, c)
	now := p.now()
	b := &domain.Board{
		Name:        name,
		Description: in.Description,
		Columns:     columns,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.Boards().Create(ctx, b); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateBoard: %w", err)
	}

	log.Info().Str("board_id", b.ID).Str("actor", actor).Msg("board created")
	p.publish(ctx, realtime.BoardCreated(b, actor))
	return b, nil
}

func (p *Pipeline) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	b, err := p.store.Boards().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.GetBoard: %w", err)
	}
	return b, nil
}

func (p *Pipeline) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	boards, err := p.store.Boards().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.ListBoards: %w", err)
	}
	return boards, nil
}

// UpdateBoard applies a partial update. Dropping a column that still holds
// tickets is rejected.
func (p *Pipeline) UpdateBoard(ctx context.Context, id string, patch BoardPatch, c Caller) (*domain.Board, error) {
	unlock := p.lockBoard(id)
	defer unlock()

	b, err := p.store.Boards().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.UpdateBoard: %w", err)
	}

	changed := false
	if patch.Name != nil {
		name, err := requireText("board name", *patch.Name, maxNameLen)
		if err != nil {
			return nil, fmt.Errorf("pipeline.Pipeline.UpdateBoard: %w", err)
		}
		if name != b.Name {
			b.Name = name
			changed = true
		}
	}
	if patch.Description != nil && *patch.Description != b.Description {
		b.Description = *patch.Description
		changed = true
	}
	if patch.Columns != nil {
		columns, err := domain.NormalizeColumns(patch.Columns)
		if err != nil {
			return nil, fmt.Errorf("pipeline.Pipeline.UpdateBoard: %w", err)
		}
		next := &domain.Board{Columns: columns}
		for _, col := range b.Columns {
			if next.HasColumn(col) {
				continue
			}
			n, err := p.store.Tickets().CountByColumn(ctx, id, col)
			if err != nil {
				return nil, fmt.Errorf("pipeline.Pipeline.UpdateBoard: count column %q: %w", col, err)
			}
			if n > 0 {
				return nil, fmt.Errorf("pipeline.Pipeline.UpdateBoard: column %q still holds %d tickets: %w", col, n, domain.ErrInvalid)
			}
		}
		if strings.Join(columns, "\x00") != strings.Join(b.Columns, "\x00") {
			b.Columns = columns
			changed = true
		}
	}
	if !changed {
		return b, nil
	}

	b.UpdatedAt = p.now()
	if err := p.store.Boards().Update(ctx, b); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.UpdateBoard: %w", err)
	}

	p.publish(ctx, realtime.BoardUpdated(b, p.actor(ctx, c)))
	return b, nil
}

func (p *Pipeline) DeleteBoard(ctx context.Context, id string, c Caller) error {
	unlock := p.lockBoard(id)
	defer unlock()

	if err := p.store.Boards().Delete(ctx, id); err != nil {
		return fmt.Errorf("pipeline.Pipeline.DeleteBoard: %w", err)
	}

	actor := p.actor(ctx, c)
	log.Info().Str("board_id", id).Str("actor", actor).Msg("board deleted")
	p.publish(ctx, realtime.BoardDeleted(id, actor))
	return nil
}

// ---------------------------------------------------------------------------
// Tickets
// ---------------------------------------------------------------------------

type TicketInput struct {
	BoardID     string
	Title       string
	Description string
	Priority    domain.Priority
	Assignee    *string
	Column      string // empty selects the board's first column
}

// TicketPatch carries a partial ticket update. Nil fields are left unchanged;
// an empty Assignee unassigns the ticket. BoardID, when set, must match the
// ticket's board: tickets never change boards.
type TicketPatch struct {
	BoardID     *string
	Title       *string
	Description *string
	Priority    *domain.Priority
	Assignee    *string
}

func (p *Pipeline) CreateTicket(ctx context.Context, in TicketInput, c Caller) (*domain.Ticket, error) {
	if err := requireID("board", in.BoardID); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateTicket: %w", err)
	}
	title, err := requireText("title", in.Title, maxTitleLen)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateTicket: %w", err)
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateTicket: unknown priority %q: %w", priority, domain.ErrInvalid)
	}

	unlock := p.lockBoard(in.BoardID)
	defer unlock()

	b, err := p.store.Boards().GetByID(ctx, in.BoardID)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateTicket: %w", err)
	}
	column := in.Column
	if column == "" && len(b.Columns) > 0 {
		column = b.Columns[0]
	}
	if !b.HasColumn(column) {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateTicket: column %q is not defined on board %s (columns: %s): %w",
			column, b.ID, strings.Join(b.Columns, ", "), domain.ErrInvalid)
	}

	actor := p.actor(ctx, c)
	now := p.now()
	t := &domain.Ticket{
		BoardID:     b.ID,
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		Assignee:    normalizeAssignee(in.Assignee),
		Column:      column,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.Tickets().Create(ctx, t); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.CreateTicket: %w", err)
	}

	p.record(ctx, &domain.HistoryEntry{
		TicketID: t.ID,
		BoardID:  t.BoardID,
		Kind:     domain.HistoryCreated,
		Field:    "column",
		ToValue:  t.Column,
		Actor:    actor,
	})
	p.publish(ctx, realtime.TicketCreated(t, actor))
	return t, nil
}

func (p *Pipeline) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := p.store.Tickets().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.GetTicket: %w", err)
	}
	return t, nil
}

// ListTickets returns a board's tickets. An unknown board is NotFound.
func (p *Pipeline) ListTickets(ctx context.Context, boardID string) ([]*domain.Ticket, error) {
	if _, err := p.store.Boards().GetByID(ctx, boardID); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.ListTickets: %w", err)
	}
	tickets, err := p.store.Tickets().ListByBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.ListTickets: %w", err)
	}
	if tickets == nil {
		tickets = []*domain.Ticket{}
	}
	return tickets, nil
}

// UpdateTicket applies a partial update and writes one history entry per
// changed field. An update that changes nothing writes and emits nothing.
func (p *Pipeline) UpdateTicket(ctx context.Context, id string, patch TicketPatch, c Caller) (*domain.Ticket, error) {
	unlock := p.lockTicket(id)
	defer unlock()

	t, err := p.store.Tickets().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.UpdateTicket: %w", err)
	}
	if patch.BoardID != nil && *patch.BoardID != t.BoardID {
		return nil, fmt.Errorf("pipeline.Pipeline.UpdateTicket: ticket %s belongs to board %s and cannot move to board %s: %w",
			t.ID, t.BoardID, *patch.BoardID, domain.ErrInvalid)
	}

	var changes []realtime.FieldChange

	if patch.Title != nil {
		title, err := requireText("title", *patch.Title, maxTitleLen)
		if err != nil {
			return nil, fmt.Errorf("pipeline.Pipeline.UpdateTicket: %w", err)
		}
		if title != t.Title {
			changes = append(changes, realtime.FieldChange{Field: "title", From: t.Title, To: title})
			t.Title = title
		}
	}
	if patch.Description != nil && *patch.Description != t.Description {
		changes = append(changes, realtime.FieldChange{Field: "description", From: t.Description, To: *patch.Description})
		t.Description = *patch.Description
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, fmt.Errorf("pipeline.Pipeline.UpdateTicket: unknown priority %q: %w", *patch.Priority, domain.ErrInvalid)
		}
		if *patch.Priority != t.Priority {
			changes = append(changes, realtime.FieldChange{Field: "priority", From: string(t.Priority), To: string(*patch.Priority)})
			t.Priority = *patch.Priority
		}
	}
	if patch.Assignee != nil {
		next := normalizeAssignee(patch.Assignee)
		if assigneeValue(next) != assigneeValue(t.Assignee) {
			changes = append(changes, realtime.FieldChange{Field: "assignee", From: assigneeValue(t.Assignee), To: assigneeValue(next)})
			t.Assignee = next
		}
	}

	if len(changes) == 0 {
		return t, nil
	}

	actor := p.actor(ctx, c)
	t.UpdatedAt = p.now()
	if err := p.store.Tickets().Update(ctx, t); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.UpdateTicket: %w", err)
	}

	for _, ch := range changes {
		p.record(ctx, &domain.HistoryEntry{
			TicketID:  t.ID,
			BoardID:   t.BoardID,
			Kind:      domain.HistoryUpdated,
			Field:     ch.Field,
			FromValue: ch.From,
			ToValue:   ch.To,
			Actor:     actor,
		})
	}
	p.publish(ctx, realtime.TicketUpdated(t, changes, actor))
	return t, nil
}

// MoveTicket moves a ticket to another column of its own board. Moving to
// the current column succeeds without side effects.
func (p *Pipeline) MoveTicket(ctx context.Context, id, column string, c Caller) (*domain.Ticket, error) {
	t, b, unlock, err := p.lockTicketOnBoard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.MoveTicket: %w", err)
	}
	defer unlock()

	if !b.HasColumn(column) {
		return nil, fmt.Errorf("pipeline.Pipeline.MoveTicket: column %q is not defined on board %s (columns: %s): %w",
			column, b.ID, strings.Join(b.Columns, ", "), domain.ErrInvalid)
	}
	if column == t.Column {
		return t, nil
	}

	actor := p.actor(ctx, c)
	from := t.Column
	t.Column = column
	t.UpdatedAt = p.now()
	if err := p.store.Tickets().Update(ctx, t); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.MoveTicket: %w", err)
	}

	p.record(ctx, &domain.HistoryEntry{
		TicketID:  t.ID,
		BoardID:   t.BoardID,
		Kind:      domain.HistoryMoved,
		Field:     "column",
		FromValue: from,
		ToValue:   column,
		Actor:     actor,
	})
	p.publish(ctx, realtime.TicketMoved(t, from, column, actor))
	return t, nil
}

// DeleteTicket removes the ticket and its comments. Its history is kept and
// gains a final "deleted" entry.
func (p *Pipeline) DeleteTicket(ctx context.Context, id string, c Caller) error {
	unlock := p.lockTicket(id)
	defer unlock()

	t, err := p.store.Tickets().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("pipeline.Pipeline.DeleteTicket: %w", err)
	}
	if err := p.store.Tickets().Delete(ctx, id); err != nil {
		return fmt.Errorf("pipeline.Pipeline.DeleteTicket: %w", err)
	}

	actor := p.actor(ctx, c)
	p.record(ctx, &domain.HistoryEntry{
		TicketID:  t.ID,
		BoardID:   t.BoardID,
		Kind:      domain.HistoryDeleted,
		FromValue: t.Title,
		Actor:     actor,
	})
	p.publish(ctx, realtime.TicketDeleted(t, actor))
	return nil
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

func (p *Pipeline) AddComment(ctx context.Context, ticketID, text string, c Caller) (*domain.Comment, error) {
	body, err := requireText("comment text", text, maxCommentLen)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.AddComment: %w", err)
	}

	unlock := p.lockTicket(ticketID)
	defer unlock()

	t, err := p.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.AddComment: %w", err)
	}

	actor := p.actor(ctx, c)
	cm := &domain.Comment{
		TicketID:  t.ID,
		Author:    actor,
		Text:      body,
		CreatedAt: p.now(),
	}
	if err := p.store.Comments().Create(ctx, cm); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.AddComment: %w", err)
	}

	p.record(ctx, &domain.HistoryEntry{
		TicketID: t.ID,
		BoardID:  t.BoardID,
		Kind:     domain.HistoryCommented,
		ToValue:  cm.ID,
		Actor:    actor,
	})
	p.publish(ctx, realtime.CommentAdded(cm, t.BoardID))
	return cm, nil
}

func (p *Pipeline) ListComments(ctx context.Context, ticketID string) ([]*domain.Comment, error) {
	if _, err := p.store.Tickets().GetByID(ctx, ticketID); err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.ListComments: %w", err)
	}
	comments, err := p.store.Comments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.ListComments: %w", err)
	}
	return comments, nil
}

// History pages through a ticket's audit trail. Tickets without history,
// including unknown ones, yield an empty page.
func (p *Pipeline) History(ctx context.Context, q history.Query) (*history.Page, error) {
	page, err := p.recorder.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Pipeline.History: %w", err)
	}
	return page, nil
}
