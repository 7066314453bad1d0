package v1_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/syncboard/internal/api/v1"
	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/realtime"
)

func TestCreateBoard(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Post("/boards", map[string]any{
			"name":    "Sprint 12",
			"columns": []string{"backlog", "doing", "done"},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		body := decode[domain.Board](t, resp.Body)
		assert.Equal(t, "Sprint 12", body.Name)
		assert.Equal(t, []string{"backlog", "doing", "done"}, body.Columns)
		assert.NotEmpty(t, body.ID)
		assert.Equal(t, 1, env.pub.count(realtime.KindBoardCreated))
	})

	t.Run("default_columns", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Post("/boards", map[string]any{"name": "Plain"})

		require.Equal(t, http.StatusOK, resp.Code)
		body := decode[domain.Board](t, resp.Body)
		assert.Equal(t, domain.DefaultColumns, body.Columns)
	})

	t.Run("missing_name", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Post("/boards", map[string]any{"description": "no name"})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Zero(t, env.pub.count(realtime.KindBoardCreated))
	})

	t.Run("duplicate_columns", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Post("/boards", map[string]any{
			"name":    "Dup",
			"columns": []string{"a", "a"},
		})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		p := decode[problem](t, resp.Body)
		assert.NotContains(t, p.Detail, "pipeline.")
		assert.NotContains(t, p.Detail, "domain: invalid")
	})
}

func TestListBoards(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Get("/boards")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `[]`, resp.Body.String())
	})

	t.Run("lists_created", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.board(t)
		env.board(t)

		resp := env.api.Get("/boards")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decode[[]domain.Board](t, resp.Body), 2)
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardRoutes(api, failingBoardService{})

		resp := api.Get("/boards")
		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.NotContains(t, resp.Body.String(), errStoreDown.Error())
	})
}

func TestGetBoard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.board(t)

	resp := env.api.Get("/boards/" + b.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, b.ID, decode[domain.Board](t, resp.Body).ID)

	resp = env.api.Get("/boards/999")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateBoard(t *testing.T) {
	t.Parallel()

	t.Run("rename", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t)

		resp := env.api.Patch("/boards/"+b.ID, map[string]any{"name": "Renamed"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "Renamed", decode[domain.Board](t, resp.Body).Name)
		assert.Equal(t, 1, env.pub.count(realtime.KindBoardUpdated))
	})

	t.Run("cannot_drop_occupied_column", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		b := env.board(t, "todo", "done")
		env.ticket(t, b.ID)

		resp := env.api.Patch("/boards/"+b.ID, map[string]any{"columns": []string{"done"}})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, decode[problem](t, resp.Body).Detail, "todo")
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp := env.api.Patch("/boards/42", map[string]any{"name": "x"})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestDeleteBoard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.board(t)
	tk := env.ticket(t, b.ID)

	resp := env.api.DeleteCtx(sessionCtx("", "carol"), "/boards/"+b.ID)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, 1, env.pub.count(realtime.KindBoardDeleted))

	_, err := env.pipeline.GetTicket(context.Background(), tk.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	resp = env.api.Delete("/boards/" + b.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
