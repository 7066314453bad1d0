package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/syncboard/internal/realtime"
)

func TestMonitor_PrunesAfterMaxMissed(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := realtime.NewRegistry(16, clk, nil)
	m := realtime.NewMonitor(reg, 30*time.Second, 3, clk)

	silent, _ := reg.Register("silent", realtime.RegisterOptions{})
	alive, _ := reg.Register("alive", realtime.RegisterOptions{})

	for range 3 {
		assert.Zero(t, m.Sweep())
		alive.Touch(clk.Now())
	}
	assert.Equal(t, 3, silent.Missed())
	assert.Zero(t, alive.Missed())

	assert.Equal(t, 1, m.Sweep())
	_, ok := reg.Get("silent")
	assert.False(t, ok)
	assert.True(t, silent.Closed())
	_, ok = reg.Get("alive")
	assert.True(t, ok)

	fs := drain(t, alive)
	require.Len(t, fs, 4)
	for _, f := range fs {
		assert.Equal(t, "heartbeat", f.Event)
	}

	snap := reg.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.ConnsPruned)
	assert.Equal(t, int64(7), snap.HeartbeatsSent)
}

func TestMonitor_PrunesFullQueue(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(1, nil, nil)
	m := realtime.NewMonitor(reg, time.Second, 10, nil)

	c, _ := reg.Register("c", realtime.RegisterOptions{})
	assert.Zero(t, m.Sweep())
	assert.Equal(t, 1, m.Sweep(), "second heartbeat cannot be queued")
	assert.True(t, c.Closed())
}

func TestMonitor_Run(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := realtime.NewRegistry(16, clk, nil)
	m := realtime.NewMonitor(reg, 30*time.Second, 3, clk)
	c, _ := reg.Register("c", realtime.RegisterOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.NoError(t, clk.WaitAdvance(30*time.Second, time.Second, 1))
	f := next(t, c)
	assert.Equal(t, "heartbeat", f.Event)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
