package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrBroadcasterClosed is returned by Publish after Close.
var ErrBroadcasterClosed = errors.New("realtime: broadcaster closed") //nolint:gochecknoglobals // sentinel error

// Broadcaster decouples mutation success from delivery. Publish hands an
// event to a FIFO queue; a single dispatcher goroutine (Run) encodes it once
// and enqueues the frame on each target connection. Because there is one
// dispatcher and every connection queue is FIFO, subscribers of a board see
// its events in publish order.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
	queue    chan Event

	done      chan struct{}
	closeOnce sync.Once

	stopped  chan struct{}
	stopOnce sync.Once
}

func NewBroadcaster(registry *Registry, buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		registry: registry,
		metrics:  registry.Metrics(),
		queue:    make(chan Event, buffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Publish enqueues ev for delivery. It blocks only while the queue is full.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	if ev.IsZero() {
		return errors.New("realtime.Broadcaster.Publish: empty event")
	}

	select {
	case <-b.done:
		return ErrBroadcasterClosed
	default:
	}

	select {
	case b.queue <- ev:
		b.metrics.IncEventsPublished()
		return nil
	case <-b.done:
		return ErrBroadcasterClosed
	case <-ctx.Done():
		return fmt.Errorf("realtime.Broadcaster.Publish: %w", ctx.Err())
	}
}

// Run dispatches queued events until ctx is cancelled or Close is called.
// Events already queued when Close is called are still delivered.
func (b *Broadcaster) Run(ctx context.Context) {
	defer b.stopOnce.Do(func() { close(b.stopped) })

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			b.drain()
			return
		case ev := <-b.queue:
			b.Deliver(ev)
		}
	}
}

func (b *Broadcaster) drain() {
	for {
		select {
		case ev := <-b.queue:
			b.Deliver(ev)
		default:
			return
		}
	}
}

// Close stops accepting events. It is safe to call more than once.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Stopped is closed once Run returns. After Close, every event queued
// before Close has by then been handed to its connections.
func (b *Broadcaster) Stopped() <-chan struct{} { return b.stopped }

// Deliver sends ev to its target connections synchronously and returns the
// number of connections that accepted the frame. Connections that cannot
// accept it are pruned.
func (b *Broadcaster) Deliver(ev Event) int {
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev.Kind())).Msg("encode event")
		return 0
	}

	var targets []*Conn
	if ev.BoardID() != "" {
		targets = b.registry.ListByBoard(ev.BoardID())
	} else {
		targets = b.registry.ListAll()
	}

	delivered := 0
	for _, c := range targets {
		if err := c.Enqueue(frame); err != nil {
			b.metrics.IncDeliveryFailures()
			b.metrics.IncConnsPruned()
			log.Debug().Err(err).
				Str("client_id", c.ID()).
				Str("event", string(ev.Kind())).
				Msg("delivery failed, pruning connection")
			b.registry.Detach(c)
			continue
		}
		b.metrics.IncFramesDelivered()
		delivered++
	}
	return delivered
}
