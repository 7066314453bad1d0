// Package realtime tracks live client connections and fans change events out
// to the connections subscribed to the affected board.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/gosuda/syncboard/internal/domain"
)

type Kind string

const (
	KindConnected     Kind = "connected"
	KindHeartbeat     Kind = "heartbeat"
	KindBoardCreated  Kind = "board_created"
	KindBoardUpdated  Kind = "board_updated"
	KindBoardDeleted  Kind = "board_deleted"
	KindTicketCreated Kind = "ticket_created"
	KindTicketUpdated Kind = "ticket_updated"
	KindTicketMoved   Kind = "ticket_moved"
	KindTicketDeleted Kind = "ticket_deleted"
	KindCommentAdded  Kind = "comment_added"
	KindBulkUpdate    Kind = "bulk_update"
)

// Payload is the data of one event kind. Only the types in this package
// implement it, so the set of event shapes is closed.
type Payload interface {
	eventKind() Kind
}

// Event is one change notification. A non-empty board id routes it to that
// board's subscribers (and global listeners); an empty one reaches everybody.
type Event struct {
	boardID string
	payload Payload
}

func (e Event) Kind() Kind       { return e.payload.eventKind() }
func (e Event) BoardID() string  { return e.boardID }
func (e Event) Payload() Payload { return e.payload }
func (e Event) IsZero() bool     { return e.payload == nil }

type envelope struct {
	Event   Kind    `json:"event"`
	Data    Payload `json:"data"`
	BoardID string  `json:"board_id,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{Event: e.Kind(), Data: e.payload, BoardID: e.boardID})
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

type ConnectedData struct {
	ClientID string `json:"client_id"`
	Username string `json:"username,omitempty"`
	BoardID  string `json:"board_id,omitempty"`
}

type HeartbeatData struct {
	Timestamp time.Time `json:"timestamp"`
}

type BoardCreatedData struct {
	Board     *domain.Board `json:"board"`
	CreatedBy string        `json:"created_by"`
}

type BoardUpdatedData struct {
	Board     *domain.Board `json:"board"`
	UpdatedBy string        `json:"updated_by"`
}

type BoardDeletedData struct {
	BoardID   string `json:"board_id"`
	DeletedBy string `json:"deleted_by"`
}

type TicketCreatedData struct {
	Ticket    *domain.Ticket `json:"ticket"`
	CreatedBy string         `json:"created_by"`
}

// FieldChange is one changed ticket field with its before and after values.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type TicketUpdatedData struct {
	Ticket    *domain.Ticket `json:"ticket"`
	Changes   []FieldChange  `json:"changes"`
	UpdatedBy string         `json:"updated_by"`
}

type TicketMovedData struct {
	TicketID   string         `json:"ticket_id"`
	FromColumn string         `json:"from_column"`
	ToColumn   string         `json:"to_column"`
	MovedBy    string         `json:"moved_by"`
	Ticket     *domain.Ticket `json:"ticket"`
}

type TicketDeletedData struct {
	TicketID  string `json:"ticket_id"`
	BoardID   string `json:"board_id"`
	DeletedBy string `json:"deleted_by"`
}

type CommentAddedData struct {
	Comment *domain.Comment `json:"comment"`
}

type BulkUpdateData struct {
	Operation string   `json:"operation"`
	TicketIDs []string `json:"ticket_ids"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Actor     string   `json:"actor"`
}

func (ConnectedData) eventKind() Kind     { return KindConnected }
func (HeartbeatData) eventKind() Kind     { return KindHeartbeat }
func (BoardCreatedData) eventKind() Kind  { return KindBoardCreated }
func (BoardUpdatedData) eventKind() Kind  { return KindBoardUpdated }
func (BoardDeletedData) eventKind() Kind  { return KindBoardDeleted }
func (TicketCreatedData) eventKind() Kind { return KindTicketCreated }
func (TicketUpdatedData) eventKind() Kind { return KindTicketUpdated }
func (TicketMovedData) eventKind() Kind   { return KindTicketMoved }
func (TicketDeletedData) eventKind() Kind { return KindTicketDeleted }
func (CommentAddedData) eventKind() Kind  { return KindCommentAdded }
func (BulkUpdateData) eventKind() Kind    { return KindBulkUpdate }

// ---------------------------------------------------------------------------
// Constructors. Routing is decided here, not by callers.
// ---------------------------------------------------------------------------

func Connected(clientID, username, boardID string) Event {
	return Event{payload: ConnectedData{ClientID: clientID, Username: username, BoardID: boardID}}
}

func Heartbeat(at time.Time) Event {
	return Event{payload: HeartbeatData{Timestamp: at}}
}

// BoardCreated is unscoped: nobody can be subscribed to a board that did not exist.
func BoardCreated(b *domain.Board, actor string) Event {
	return Event{payload: BoardCreatedData{Board: b, CreatedBy: actor}}
}

func BoardUpdated(b *domain.Board, actor string) Event {
	return Event{boardID: b.ID, payload: BoardUpdatedData{Board: b, UpdatedBy: actor}}
}

// BoardDeleted is unscoped so every client learns about it regardless of subscription.
func BoardDeleted(boardID, actor string) Event {
	return Event{payload: BoardDeletedData{BoardID: boardID, DeletedBy: actor}}
}

func TicketCreated(t *domain.Ticket, actor string) Event {
	return Event{boardID: t.BoardID, payload: TicketCreatedData{Ticket: t, CreatedBy: actor}}
}

func TicketUpdated(t *domain.Ticket, changes []FieldChange, actor string) Event {
	return Event{boardID: t.BoardID, payload: TicketUpdatedData{Ticket: t, Changes: changes, UpdatedBy: actor}}
}

func TicketMoved(t *domain.Ticket, from, to, actor string) Event {
	return Event{boardID: t.BoardID, payload: TicketMovedData{
		TicketID:   t.ID,
		FromColumn: from,
		ToColumn:   to,
		MovedBy:    actor,
		Ticket:     t,
	}}
}

func TicketDeleted(t *domain.Ticket, actor string) Event {
	return Event{boardID: t.BoardID, payload: TicketDeletedData{TicketID: t.ID, BoardID: t.BoardID, DeletedBy: actor}}
}

func CommentAdded(c *domain.Comment, boardID string) Event {
	return Event{boardID: boardID, payload: CommentAddedData{Comment: c}}
}

func BulkUpdate(boardID string, data BulkUpdateData) Event {
	return Event{boardID: boardID, payload: data}
}
