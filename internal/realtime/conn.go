package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrConnClosed = errors.New("realtime: connection closed")   //nolint:gochecknoglobals // sentinel error
	ErrQueueFull  = errors.New("realtime: outbound queue full") //nolint:gochecknoglobals // sentinel error
)

// Conn is the registry's handle for one live client connection. Frames
// queued with Enqueue are drained by the transport through Outbound.
// The outbound channel is never closed; Done signals shutdown instead, so a
// publish racing a close fails with ErrConnClosed rather than panicking.
type Conn struct {
	id   string
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex // protects the fields below
	boardID  string     // empty = all boards
	username string
	lastSeen time.Time
	missed   int
}

func newConn(id, boardID, username string, queueSize int, now time.Time) *Conn {
	return &Conn{
		id:       id,
		out:      make(chan []byte, queueSize),
		done:     make(chan struct{}),
		boardID:  boardID,
		username: username,
		lastSeen: now,
	}
}

func (c *Conn) ID() string { return c.id }

// BoardID returns the subscribed board, or "" for a global listener.
func (c *Conn) BoardID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boardID
}

func (c *Conn) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Conn) SetUsername(name string) {
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
}

func (c *Conn) setBoard(boardID string) {
	c.mu.Lock()
	c.boardID = boardID
	c.mu.Unlock()
}

func (c *Conn) Outbound() <-chan []byte { return c.out }
func (c *Conn) Done() <-chan struct{}   { return c.done }

// Enqueue queues frame without blocking.
func (c *Conn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrQueueFull
	}
}

// Send encodes ev and queues it for this connection only.
func (c *Conn) Send(ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime.Conn.Send: %w", err)
	}
	return c.Enqueue(frame)
}

// Close marks the connection dead. It is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Touch records client activity and clears the missed heartbeat count.
func (c *Conn) Touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.missed = 0
	c.mu.Unlock()
}

func (c *Conn) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Conn) Missed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missed
}

func (c *Conn) markMissed() {
	c.mu.Lock()
	c.missed++
	c.mu.Unlock()
}
