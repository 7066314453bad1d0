package realtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
)

// ErrEmptyConnID is returned when registering a connection without an id.
var ErrEmptyConnID = errors.New("realtime: connection id is required") //nolint:gochecknoglobals // sentinel error

// RegisterOptions carries the optional parts of a registration.
type RegisterOptions struct {
	BoardID  string // empty subscribes to every board
	Username string
	// Greeting, when set, is queued on the new handle before it becomes
	// visible to broadcasts, so it is always the first frame delivered.
	Greeting Event
}

// Registry tracks live connections and their board subscriptions. Readers
// get copies of the subscriber sets, so broadcasting never iterates a map
// that a concurrent Register or Unregister is mutating.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	boards map[string]map[string]*Conn // board id -> conn id -> conn
	global map[string]*Conn

	queueSize int
	clock     clock.Clock
	metrics   *Metrics
}

func NewRegistry(queueSize int, clk clock.Clock, metrics *Metrics) *Registry {
	if queueSize < 1 {
		queueSize = 1
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{
		conns:     make(map[string]*Conn),
		boards:    make(map[string]map[string]*Conn),
		global:    make(map[string]*Conn),
		queueSize: queueSize,
		clock:     clk,
		metrics:   metrics,
	}
}

func (r *Registry) Metrics() *Metrics { return r.metrics }

// Register adds a connection. Registering an id that is already present
// replaces the previous entry and closes the superseded handle.
func (r *Registry) Register(id string, opts RegisterOptions) (*Conn, error) {
	if id == "" {
		return nil, fmt.Errorf("realtime.Registry.Register: %w", ErrEmptyConnID)
	}

	c := newConn(id, opts.BoardID, opts.Username, r.queueSize, r.clock.Now())
	if !opts.Greeting.IsZero() {
		if err := c.Send(opts.Greeting); err != nil {
			return nil, fmt.Errorf("realtime.Registry.Register: greeting: %w", err)
		}
	}

	r.mu.Lock()
	old := r.conns[id]
	if old != nil {
		r.removeLocked(old)
	}
	r.conns[id] = c
	r.indexLocked(c, opts.BoardID)
	n := len(r.conns)
	r.mu.Unlock()

	if old != nil {
		old.Close()
		log.Debug().Str("client_id", id).Msg("connection superseded")
	}
	r.metrics.SetConnectedClients(n)

	return c, nil
}

// Unregister removes and closes the connection. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	c := r.conns[id]
	if c != nil {
		r.removeLocked(c)
	}
	n := len(r.conns)
	r.mu.Unlock()

	if c != nil {
		c.Close()
		r.metrics.SetConnectedClients(n)
	}
}

// Detach removes c only if it is still the registered handle for its id,
// so cleanup of a superseded socket cannot evict its replacement.
// c is closed either way.
func (r *Registry) Detach(c *Conn) {
	r.mu.Lock()
	current := r.conns[c.id] == c
	if current {
		r.removeLocked(c)
	}
	n := len(r.conns)
	r.mu.Unlock()

	c.Close()
	if current {
		r.metrics.SetConnectedClients(n)
	}
}

// Subscribe points the connection at boardID, replacing any previous
// subscription. An empty boardID subscribes to every board.
func (r *Registry) Subscribe(id, boardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conns[id]
	if c == nil {
		return fmt.Errorf("realtime.Registry.Subscribe: connection %s: %w", id, domain.ErrNotFound)
	}
	r.unindexLocked(c)
	r.indexLocked(c, boardID)
	return nil
}

// SubscribeConn is Subscribe for a specific handle. It fails with
// domain.ErrNotFound once c has been superseded or removed.
func (r *Registry) SubscribeConn(c *Conn, boardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[c.id] != c {
		return fmt.Errorf("realtime.Registry.SubscribeConn: connection %s: %w", c.id, domain.ErrNotFound)
	}
	r.unindexLocked(c)
	r.indexLocked(c, boardID)
	return nil
}

// ListByBoard returns the connections that should receive an event scoped
// to boardID: its subscribers plus every global listener.
func (r *Registry) ListByBoard(boardID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.boards[boardID]
	out := make([]*Conn, 0, len(subs)+len(r.global))
	for _, c := range subs {
		out = append(out, c)
	}
	for _, c := range r.global {
		out = append(out, c)
	}
	return out
}

func (r *Registry) ListAll() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// The helpers below must be called with r.mu held for writing.

func (r *Registry) indexLocked(c *Conn, boardID string) {
	c.setBoard(boardID)
	if boardID == "" {
		r.global[c.id] = c
		return
	}
	subs := r.boards[boardID]
	if subs == nil {
		subs = make(map[string]*Conn)
		r.boards[boardID] = subs
	}
	subs[c.id] = c
}

func (r *Registry) unindexLocked(c *Conn) {
	boardID := c.BoardID()
	if boardID == "" {
		delete(r.global, c.id)
		return
	}
	subs := r.boards[boardID]
	delete(subs, c.id)
	if len(subs) == 0 {
		delete(r.boards, boardID)
	}
}

func (r *Registry) removeLocked(c *Conn) {
	r.unindexLocked(c)
	delete(r.conns, c.id)
}
