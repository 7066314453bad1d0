package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/realtime"
)

// BulkStatus is the outcome of one item of a bulk operation.
type BulkStatus string

const (
	BulkOK            BulkStatus = "ok"
	BulkNotFound      BulkStatus = "not_found"
	BulkInvalidTarget BulkStatus = "invalid_target"
	BulkInvalidID     BulkStatus = "invalid_id"
	BulkError         BulkStatus = "error"
)

const (
	OpBulkMove     = "move"
	OpBulkAssign   = "assign"
	OpBulkPriority = "priority"
)

type BulkItemResult struct {
	TicketID string     `json:"ticket_id"`
	Status   BulkStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// BulkResult reports every requested ticket in request order, minus
// duplicates.
type BulkResult struct {
	Operation string           `json:"operation"`
	Results   []BulkItemResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// PriorityUpdate sets one ticket's priority. TicketID may be any JSON
// identifier value accepted by domain.NormalizeID.
type PriorityUpdate struct {
	TicketID any
	Priority domain.Priority
}

// bulkItem is one normalized request entry.
type bulkItem struct {
	id       string
	raw      any
	idErr    error
	priority domain.Priority
}

// applyFunc validates and applies one operation to t in place. It returns
// the changes it made; nil means t already matched and nothing is written.
type applyFunc func(t *domain.Ticket, b *domain.Board) ([]realtime.FieldChange, error)

// errInvalidTarget marks an item whose target value is not acceptable for
// that ticket (unknown column, unknown priority).
var errInvalidTarget = errors.New("invalid target") //nolint:gochecknoglobals // sentinel error

// normalizeItems resolves raw identifiers and drops repeats. The first
// occurrence of an id keeps its position.
func normalizeItems(raw []any, priorities []domain.Priority) []bulkItem {
	items := make([]bulkItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, v := range raw {
		it := bulkItem{raw: v}
		if priorities != nil {
			it.priority = priorities[i]
		}
		id, err := domain.NormalizeID(v)
		if err != nil {
			it.idErr = err
			items = append(items, it)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		it.id = id
		items = append(items, it)
	}
	return items
}

// BulkMove moves every listed ticket to column. Each ticket is validated
// against its own board.
func (p *Pipeline) BulkMove(ctx context.Context, ids []any, column string, c Caller) (*BulkResult, error) {
	items := normalizeItems(ids, nil)
	return p.runBulk(ctx, OpBulkMove, items, c, func(t *domain.Ticket, b *domain.Board) ([]realtime.FieldChange, error) {
		if !b.HasColumn(column) {
			return nil, fmt.Errorf("column %q is not defined on board %s: %w", column, b.ID, errInvalidTarget)
		}
		if t.Column == column {
			return nil, nil
		}
		ch := realtime.FieldChange{Field: "column", From: t.Column, To: column}
		t.Column = column
		return []realtime.FieldChange{ch}, nil
	})
}

// BulkAssign sets (or, with a nil or blank assignee, clears) the assignee of
// every listed ticket.
func (p *Pipeline) BulkAssign(ctx context.Context, ids []any, assignee *string, c Caller) (*BulkResult, error) {
	items := normalizeItems(ids, nil)
	next := normalizeAssignee(assignee)
	return p.runBulk(ctx, OpBulkAssign, items, c, func(t *domain.Ticket, _ *domain.Board) ([]realtime.FieldChange, error) {
		if assigneeValue(next) == assigneeValue(t.Assignee) {
			return nil, nil
		}
		ch := realtime.FieldChange{Field: "assignee", From: assigneeValue(t.Assignee), To: assigneeValue(next)}
		if next == nil {
			t.Assignee = nil
		} else {
			v := *next
			t.Assignee = &v
		}
		return []realtime.FieldChange{ch}, nil
	})
}

// BulkPriority applies a per-ticket priority to each update.
func (p *Pipeline) BulkPriority(ctx context.Context, updates []PriorityUpdate, c Caller) (*BulkResult, error) {
	raw := make([]any, len(updates))
	priorities := make([]domain.Priority, len(updates))
	for i, u := range updates {
		raw[i] = u.TicketID
		priorities[i] = u.Priority
	}
	items := normalizeItems(raw, priorities)

	byID := make(map[string]domain.Priority, len(items))
	for _, it := range items {
		if it.idErr == nil {
			byID[it.id] = it.priority
		}
	}

	return p.runBulk(ctx, OpBulkPriority, items, c, func(t *domain.Ticket, _ *domain.Board) ([]realtime.FieldChange, error) {
		pr := byID[t.ID]
		if !pr.Valid() {
			return nil, fmt.Errorf("unknown priority %q: %w", pr, errInvalidTarget)
		}
		if pr == t.Priority {
			return nil, nil
		}
		ch := realtime.FieldChange{Field: "priority", From: string(t.Priority), To: string(pr)}
		t.Priority = pr
		return []realtime.FieldChange{ch}, nil
	})
}

// runBulk processes items one at a time. A failing item never stops the
// batch. After the batch one bulk_update summary is published per board
// that had at least one success.
func (p *Pipeline) runBulk(ctx context.Context, op string, items []bulkItem, c Caller, apply applyFunc) (*BulkResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("pipeline.Pipeline.runBulk: %s: ticket_ids must not be empty: %w", op, domain.ErrInvalid)
	}

	actor := p.actor(ctx, c)
	res := &BulkResult{Operation: op, Results: make([]BulkItemResult, 0, len(items))}

	var boardOrder []string
	succeededByBoard := make(map[string][]string)

	for _, it := range items {
		if it.idErr != nil {
			res.Results = append(res.Results, BulkItemResult{
				TicketID: fmt.Sprint(it.raw),
				Status:   BulkInvalidID,
				Error:    it.idErr.Error(),
			})
			res.Failed++
			continue
		}

		boardID, status, err := p.bulkOne(ctx, op, it.id, actor, apply)
		item := BulkItemResult{TicketID: it.id, Status: status}
		if err != nil {
			item.Error = err.Error()
			res.Failed++
		} else {
			res.Succeeded++
			if _, seen := succeededByBoard[boardID]; !seen {
				boardOrder = append(boardOrder, boardID)
			}
			succeededByBoard[boardID] = append(succeededByBoard[boardID], it.id)
		}
		res.Results = append(res.Results, item)
	}

	for _, boardID := range boardOrder {
		ids := succeededByBoard[boardID]
		p.publish(ctx, realtime.BulkUpdate(boardID, realtime.BulkUpdateData{
			Operation: op,
			TicketIDs: ids,
			Succeeded: len(ids),
			Failed:    res.Failed,
			Actor:     actor,
		}))
	}

	log.Info().
		Str("operation", op).
		Str("actor", actor).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("bulk operation finished")

	return res, nil
}

// bulkOne applies op to a single ticket under its board and ticket locks
// and reports the ticket's board and the item status. The board is read
// fresh for every item so a concurrent column change is always seen.
func (p *Pipeline) bulkOne(ctx context.Context, op, id, actor string, apply applyFunc) (string, BulkStatus, error) {
	t, b, unlock, err := p.lockTicketOnBoard(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", BulkNotFound, fmt.Errorf("ticket %s not found", id)
		}
		return "", BulkError, err
	}
	defer unlock()

	changes, err := apply(t, b)
	if err != nil {
		if errors.Is(err, errInvalidTarget) {
			return "", BulkInvalidTarget, err
		}
		return "", BulkError, err
	}
	if len(changes) == 0 {
		return t.BoardID, BulkOK, nil
	}

	t.UpdatedAt = p.now()
	if err := p.store.Tickets().Update(ctx, t); err != nil {
		log.Error().Err(err).Str("ticket_id", id).Str("operation", op).Msg("bulk item failed")
		return "", BulkError, fmt.Errorf("failed to update ticket %s", id)
	}

	for _, ch := range changes {
		p.record(ctx, &domain.HistoryEntry{
			TicketID:  t.ID,
			BoardID:   t.BoardID,
			Kind:      domain.HistoryBulkUpdated,
			Field:     ch.Field,
			FromValue: ch.From,
			ToValue:   ch.To,
			Actor:     actor,
		})
	}

	if op == OpBulkMove {
		ch := changes[0]
		p.publish(ctx, realtime.TicketMoved(t, ch.From, ch.To, actor))
	} else {
		p.publish(ctx, realtime.TicketUpdated(t, changes, actor))
	}
	return t.BoardID, BulkOK, nil
}
