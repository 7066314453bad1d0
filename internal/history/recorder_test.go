package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/history"
	"github.com/gosuda/syncboard/internal/store/memory"
)

func seed(t *testing.T, r *history.Recorder, ticketID string, fields ...string) {
	t.Helper()

	for _, f := range fields {
		require.NoError(t, r.Record(context.Background(), &domain.HistoryEntry{
			TicketID: ticketID,
			Kind:     domain.HistoryUpdated,
			Field:    f,
			Actor:    "alice",
		}))
	}
}

func TestRecorder_Record(t *testing.T) {
	t.Parallel()

	r := history.NewRecorder(memory.New().History())

	t.Run("stamps time and id", func(t *testing.T) {
		t.Parallel()

		e := &domain.HistoryEntry{TicketID: "1", Kind: domain.HistoryCreated}
		require.NoError(t, r.Record(context.Background(), e))
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	})

	t.Run("requires ticket id", func(t *testing.T) {
		t.Parallel()

		err := r.Record(context.Background(), &domain.HistoryEntry{Kind: domain.HistoryCreated})
		require.ErrorIs(t, err, domain.ErrInvalid)
	})
}

func TestRecorder_Query(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := history.NewRecorder(memory.New().History())
	seed(t, r, "7", "title", "column", "priority", "column")

	t.Run("defaults to oldest first", func(t *testing.T) {
		t.Parallel()

		page, err := r.Query(ctx, history.Query{TicketID: "7"})
		require.NoError(t, err)
		require.Len(t, page.Entries, 4)
		assert.Equal(t, 4, page.Total)
		assert.Equal(t, history.DefaultLimit, page.Limit)
		assert.Equal(t, "title", page.Entries[0].Field)
		for i := 1; i < len(page.Entries); i++ {
			assert.Less(t, page.Entries[i-1].Seq, page.Entries[i].Seq)
		}
	})

	t.Run("newest first with field filter", func(t *testing.T) {
		t.Parallel()

		page, err := r.Query(ctx, history.Query{TicketID: "7", Field: "column", Order: domain.OrderDesc})
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, 2, page.Total)
		assert.Greater(t, page.Entries[0].Seq, page.Entries[1].Seq)
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		page, err := r.Query(ctx, history.Query{TicketID: "7", Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, 4, page.Total)
		assert.Equal(t, "priority", page.Entries[0].Field)
	})

	t.Run("limit is capped", func(t *testing.T) {
		t.Parallel()

		page, err := r.Query(ctx, history.Query{TicketID: "7", Limit: 10_000})
		require.NoError(t, err)
		assert.Equal(t, history.MaxLimit, page.Limit)
	})

	t.Run("unknown ticket is empty, not an error", func(t *testing.T) {
		t.Parallel()

		page, err := r.Query(ctx, history.Query{TicketID: "missing"})
		require.NoError(t, err)
		assert.Empty(t, page.Entries)
		assert.NotNil(t, page.Entries)
		assert.Zero(t, page.Total)
	})

	t.Run("invalid order", func(t *testing.T) {
		t.Parallel()

		_, err := r.Query(ctx, history.Query{TicketID: "7", Order: "sideways"})
		require.ErrorIs(t, err, domain.ErrInvalid)
	})

	t.Run("negative offset", func(t *testing.T) {
		t.Parallel()

		_, err := r.Query(ctx, history.Query{TicketID: "7", Offset: -1})
		require.ErrorIs(t, err, domain.ErrInvalid)
	})

	t.Run("read idempotence", func(t *testing.T) {
		t.Parallel()

		a, err := r.Query(ctx, history.Query{TicketID: "7"})
		require.NoError(t, err)
		b, err := r.Query(ctx, history.Query{TicketID: "7"})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}
