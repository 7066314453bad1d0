package v1_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/syncboard/internal/api/v1"
	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/history"
	"github.com/gosuda/syncboard/internal/realtime"
	"github.com/gosuda/syncboard/internal/session"
)

func TestCreateTicket(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t, "todo", "done")

		resp := env.api.Post("/tickets", map[string]any{
			"board_id": b.ID,
			"title":    "Wire login",
			"priority": "high",
			"author":   "dana",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		body := decode[domain.Ticket](t, resp.Body)
		assert.Equal(t, "Wire login", body.Title)
		assert.Equal(t, "todo", body.Column, "first column is the default")
		assert.Equal(t, domain.PriorityHigh, body.Priority)
		assert.Equal(t, "dana", body.CreatedBy)
		assert.Equal(t, 1, env.pub.count(realtime.KindTicketCreated))
	})

	t.Run("numeric_board_id", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)
		require.Equal(t, "1", b.ID)

		resp := env.api.Post("/tickets", map[string]any{"board_id": 1, "title": "Numeric"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "1", decode[domain.Ticket](t, resp.Body).BoardID)
	})

	t.Run("invalid_column", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t, "todo", "done")

		resp := env.api.Post("/tickets", map[string]any{
			"board_id": b.ID,
			"title":    "Lost",
			"column":   "archive",
		})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, decode[problem](t, resp.Body).Detail, `"archive"`)
		assert.Zero(t, env.pub.count(realtime.KindTicketCreated))
	})

	t.Run("unknown_board", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Post("/tickets", map[string]any{"board_id": "77", "title": "Orphan"})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("malformed_board_id", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Post("/tickets", map[string]any{"board_id": 1.5, "title": "Bad"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("unknown_priority", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)
		resp := env.api.Post("/tickets", map[string]any{"board_id": b.ID, "title": "P", "priority": "critical"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestAttribution(t *testing.T) {
	t.Parallel()

	t.Run("session_overrides_supplied_author", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)
		sess, err := env.resolver.CreateSession(context.Background(), "erin")
		require.NoError(t, err)

		resp := env.api.PostCtx(sessionCtx(sess.ID, "header-name"), "/tickets", map[string]any{
			"board_id": b.ID,
			"title":    "Attributed",
			"author":   "mallory",
		})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "erin", decode[domain.Ticket](t, resp.Body).CreatedBy)
	})

	t.Run("unknown_session_falls_back_to_header", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)

		resp := env.api.PostCtx(sessionCtx("stale", "grace"), "/tickets", map[string]any{
			"board_id": b.ID,
			"title":    "Header",
		})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "grace", decode[domain.Ticket](t, resp.Body).CreatedBy)
	})

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)

		resp := env.api.Post("/tickets", map[string]any{"board_id": b.ID, "title": "Nobody"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, session.AnonymousUser, decode[domain.Ticket](t, resp.Body).CreatedBy)
	})
}

func TestListTickets(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.board(t)
	other := env.board(t)
	env.ticket(t, b.ID)
	env.ticket(t, b.ID)
	env.ticket(t, other.ID)

	resp := env.api.Get("/boards/" + b.ID + "/tickets")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]domain.Ticket](t, resp.Body), 2)

	empty := env.board(t)
	resp = env.api.Get("/boards/" + empty.ID + "/tickets")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())

	resp = env.api.Get("/boards/404/tickets")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetTicket(t *testing.T) {
	t.Parallel()

	t.Run("found_and_missing", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		tk := env.ticket(t, env.board(t).ID)

		resp := env.api.Get("/tickets/" + tk.ID)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, tk.ID, decode[domain.Ticket](t, resp.Body).ID)

		resp = env.api.Get("/tickets/missing")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterTicketRoutes(api, failingBoardService{})

		resp := api.Get("/tickets/1")
		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, "failed to get ticket", decode[problem](t, resp.Body).Detail)
		assert.NotContains(t, resp.Body.String(), errStoreDown.Error())
	})
}

func TestUpdateTicket(t *testing.T) {
	t.Parallel()

	t.Run("changes_fields", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		tk := env.ticket(t, env.board(t).ID)

		resp := env.api.Patch("/tickets/"+tk.ID, map[string]any{
			"title":    "Renamed",
			"assignee": "heidi",
			"priority": "urgent",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		body := decode[domain.Ticket](t, resp.Body)
		assert.Equal(t, "Renamed", body.Title)
		assert.Equal(t, domain.PriorityUrgent, body.Priority)
		require.NotNil(t, body.Assignee)
		assert.Equal(t, "heidi", *body.Assignee)
		assert.Equal(t, 1, env.pub.count(realtime.KindTicketUpdated))
	})

	t.Run("empty_assignee_unassigns", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		tk := env.ticket(t, env.board(t).ID)
		resp := env.api.Patch("/tickets/"+tk.ID, map[string]any{"assignee": "ivan"})
		require.Equal(t, http.StatusOK, resp.Code)

		resp = env.api.Patch("/tickets/"+tk.ID, map[string]any{"assignee": ""})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Nil(t, decode[domain.Ticket](t, resp.Body).Assignee)
	})

	t.Run("board_is_immutable", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)
		other := env.board(t)
		tk := env.ticket(t, b.ID)

		resp := env.api.Patch("/tickets/"+tk.ID, map[string]any{"board_id": other.ID})
		assert.Equal(t, http.StatusBadRequest, resp.Code)

		resp = env.api.Patch("/tickets/"+tk.ID, map[string]any{"board_id": b.ID, "title": "Same board"})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("no_op_publishes_nothing", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		tk := env.ticket(t, env.board(t).ID)

		resp := env.api.Patch("/tickets/"+tk.ID, map[string]any{"title": tk.Title})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Zero(t, env.pub.count(realtime.KindTicketUpdated))
	})
}

func TestMoveTicket(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.board(t, "todo", "doing", "done")
	tk := env.ticket(t, b.ID)

	resp := env.api.Post("/tickets/"+tk.ID+"/move", map[string]any{"column": "doing"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "doing", decode[domain.Ticket](t, resp.Body).Column)
	assert.Equal(t, 1, env.pub.count(realtime.KindTicketMoved))

	resp = env.api.Post("/tickets/"+tk.ID+"/move", map[string]any{"column": "shipped"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, `column "shipped" is not defined on board `+b.ID+` (columns: todo, doing, done)`,
		decode[problem](t, resp.Body).Detail)

	resp = env.api.Post("/tickets/nope/move", map[string]any{"column": "done"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteTicket(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tk := env.ticket(t, env.board(t).ID)

	resp := env.api.Delete("/tickets/" + tk.ID)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, 1, env.pub.count(realtime.KindTicketDeleted))

	resp = env.api.Get("/tickets/" + tk.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	// History outlives the ticket.
	resp = env.api.Get("/tickets/" + tk.ID + "/history")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[history.Page](t, resp.Body)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, domain.HistoryDeleted, page.Entries[1].Kind)
}

func TestComments(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tk := env.ticket(t, env.board(t).ID)

	resp := env.api.PostCtx(sessionCtx("", "judy"), "/tickets/"+tk.ID+"/comments", map[string]any{"text": "  looks good  "})
	require.Equal(t, http.StatusOK, resp.Code)
	c := decode[domain.Comment](t, resp.Body)
	assert.Equal(t, "looks good", c.Text)
	assert.Equal(t, "judy", c.Author)
	assert.Equal(t, 1, env.pub.count(realtime.KindCommentAdded))

	resp = env.api.Get("/tickets/" + tk.ID + "/comments")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]domain.Comment](t, resp.Body), 1)

	resp = env.api.Post("/tickets/"+tk.ID+"/comments", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.api.Get("/tickets/missing/comments")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTicketHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.board(t, "a", "b", "c")
	tk := env.ticket(t, b.ID)
	for _, col := range []string{"b", "c", "a"} {
		resp := env.api.Post("/tickets/"+tk.ID+"/move", map[string]any{"column": col})
		require.Equal(t, http.StatusOK, resp.Code)
	}
	resp := env.api.Patch("/tickets/"+tk.ID, map[string]any{"title": "Retitled"})
	require.Equal(t, http.StatusOK, resp.Code)

	t.Run("default_ascending", func(t *testing.T) {
		resp := env.api.Get("/tickets/" + tk.ID + "/history")
		require.Equal(t, http.StatusOK, resp.Code)

		page := decode[history.Page](t, resp.Body)
		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Entries, 5)
		assert.Equal(t, domain.HistoryCreated, page.Entries[0].Kind)
		for i := 1; i < len(page.Entries); i++ {
			assert.Greater(t, page.Entries[i].Seq, page.Entries[i-1].Seq)
		}
	})

	t.Run("field_filter_descending_paged", func(t *testing.T) {
		resp := env.api.Get(fmt.Sprintf("/tickets/%s/history?field=column&order=desc&limit=2&offset=1", tk.ID))
		require.Equal(t, http.StatusOK, resp.Code)

		page := decode[history.Page](t, resp.Body)
		assert.Equal(t, 4, page.Total)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, "c", page.Entries[0].ToValue)
		assert.Equal(t, "b", page.Entries[1].ToValue)
	})

	t.Run("bad_order", func(t *testing.T) {
		resp := env.api.Get("/tickets/" + tk.ID + "/history?order=sideways")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}
