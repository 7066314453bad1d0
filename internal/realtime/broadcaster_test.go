package realtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/realtime"
)

type frame struct {
	Event   string          `json:"event"`
	BoardID string          `json:"board_id"`
	Data    json.RawMessage `json:"data"`
}

// drain returns every frame currently queued on c.
func drain(t *testing.T, c *realtime.Conn) []frame {
	t.Helper()

	var out []frame
	for {
		select {
		case raw := <-c.Outbound():
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func next(t *testing.T, c *realtime.Conn) frame {
	t.Helper()

	select {
	case raw := <-c.Outbound():
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func ticket(id, board string) *domain.Ticket {
	return &domain.Ticket{ID: id, BoardID: board, Title: "T" + id, Column: "todo"}
}

func TestBroadcaster_BoardIsolation(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(16, nil, nil)
	b := realtime.NewBroadcaster(reg, 16)

	c1, _ := reg.Register("c1", realtime.RegisterOptions{BoardID: "b1"})
	c2, _ := reg.Register("c2", realtime.RegisterOptions{BoardID: "b2"})
	g, _ := reg.Register("g", realtime.RegisterOptions{})

	assert.Equal(t, 2, b.Deliver(realtime.TicketCreated(ticket("1", "b1"), "alice")))
	assert.Equal(t, 2, b.Deliver(realtime.TicketCreated(ticket("2", "b2"), "bob")))

	f1 := drain(t, c1)
	require.Len(t, f1, 1)
	assert.Equal(t, "b1", f1[0].BoardID)

	f2 := drain(t, c2)
	require.Len(t, f2, 1)
	assert.Equal(t, "b2", f2[0].BoardID)

	assert.Len(t, drain(t, g), 2, "global listener sees every board")
}

func TestBroadcaster_UnscopedReachesEveryone(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(16, nil, nil)
	b := realtime.NewBroadcaster(reg, 16)

	c1, _ := reg.Register("c1", realtime.RegisterOptions{BoardID: "b1"})
	c2, _ := reg.Register("c2", realtime.RegisterOptions{BoardID: "b2"})

	assert.Equal(t, 2, b.Deliver(realtime.BoardDeleted("b1", "alice")))
	assert.Equal(t, 2, b.Deliver(realtime.BoardCreated(&domain.Board{ID: "b3", Name: "new"}, "alice")))

	for _, c := range []*realtime.Conn{c1, c2} {
		fs := drain(t, c)
		require.Len(t, fs, 2)
		assert.Equal(t, "board_deleted", fs[0].Event)
		assert.Empty(t, fs[0].BoardID, "lifecycle events are unscoped")
		assert.Equal(t, "board_created", fs[1].Event)
	}
}

func TestBroadcaster_PrunesFailedConnections(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(1, nil, nil)
	b := realtime.NewBroadcaster(reg, 16)

	slow, _ := reg.Register("slow", realtime.RegisterOptions{BoardID: "b1"})
	closed, _ := reg.Register("closed", realtime.RegisterOptions{BoardID: "b1"})
	ok, _ := reg.Register("ok", realtime.RegisterOptions{BoardID: "b1"})
	closed.Close()

	assert.Equal(t, 2, b.Deliver(realtime.TicketCreated(ticket("1", "b1"), "a")))
	_, present := reg.Get("closed")
	assert.False(t, present, "closed connection must be pruned")

	// "ok" keeps draining; "slow" never does and overflows its queue of one.
	drain(t, ok)
	assert.Equal(t, 1, b.Deliver(realtime.TicketCreated(ticket("2", "b1"), "a")))

	_, present = reg.Get("slow")
	assert.False(t, present, "slow connection must be pruned")
	assert.True(t, slow.Closed())
	assert.Len(t, drain(t, ok), 1)

	snap := reg.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.DeliveryFailures)
	assert.Equal(t, int32(1), snap.ConnectedClients)
}

func TestBroadcaster_PerBoardOrdering(t *testing.T) {
	t.Parallel()

	const n = 200

	reg := realtime.NewRegistry(2*n, nil, nil)
	b := realtime.NewBroadcaster(reg, 8)

	c1, _ := reg.Register("c1", realtime.RegisterOptions{BoardID: "b1"})
	c2, _ := reg.Register("c2", realtime.RegisterOptions{BoardID: "b1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	for i := range n {
		require.NoError(t, b.Publish(ctx, realtime.TicketCreated(ticket(fmt.Sprint(i), "b1"), "a")))
		// Interleave another board's stream.
		require.NoError(t, b.Publish(ctx, realtime.TicketCreated(ticket(fmt.Sprint(i), "b2"), "a")))
	}

	for _, c := range []*realtime.Conn{c1, c2} {
		for i := range n {
			f := next(t, c)
			var data realtime.TicketCreatedData
			require.NoError(t, json.Unmarshal(f.Data, &data))
			assert.Equal(t, fmt.Sprint(i), data.Ticket.ID)
		}
	}
}

func TestBroadcaster_Close(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(16, nil, nil)
	b := realtime.NewBroadcaster(reg, 16)
	c, _ := reg.Register("c", realtime.RegisterOptions{})

	require.NoError(t, b.Publish(context.Background(), realtime.BoardDeleted("x", "a")))
	b.Close()
	b.Close()

	err := b.Publish(context.Background(), realtime.BoardDeleted("y", "a"))
	require.ErrorIs(t, err, realtime.ErrBroadcasterClosed)

	// Run drains what was queued before Close and returns.
	b.Run(context.Background())
	fs := drain(t, c)
	require.Len(t, fs, 1)
	assert.Equal(t, "board_deleted", fs[0].Event)
}

func TestBroadcaster_PublishHonoursContext(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(16, nil, nil)
	b := realtime.NewBroadcaster(reg, 1)

	require.NoError(t, b.Publish(context.Background(), realtime.BoardDeleted("x", "a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Publish(ctx, realtime.BoardDeleted("y", "a"))
	require.ErrorIs(t, err, context.Canceled)

	require.Error(t, b.Publish(context.Background(), realtime.Event{}))
}

func TestRegistry_GreetingPrecedesBroadcasts(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(64, nil, nil)
	b := realtime.NewBroadcaster(reg, 16)

	stop := make(chan struct{})
	delivering := make(chan struct{})
	go func() {
		defer close(delivering)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				b.Deliver(realtime.TicketCreated(ticket(fmt.Sprint(i), "b1"), "alice"))
			}
		}
	}()

	conns := make([]*realtime.Conn, 0, 20)
	for i := range 20 {
		id := fmt.Sprintf("c%d", i)
		c, err := reg.Register(id, realtime.RegisterOptions{
			BoardID:  "b1",
			Greeting: realtime.Connected(id, "bob", "b1"),
		})
		require.NoError(t, err)
		conns = append(conns, c)
	}
	close(stop)
	<-delivering

	// Pruned handles keep their queued frames, so every client is checked.
	for _, c := range conns {
		assert.Equal(t, string(realtime.KindConnected), next(t, c).Event, "client %s", c.ID())
	}
}
