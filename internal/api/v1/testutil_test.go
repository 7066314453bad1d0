package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/syncboard/internal/api/v1"
	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/pipeline"
	"github.com/gosuda/syncboard/internal/realtime"
	"github.com/gosuda/syncboard/internal/server/middleware"
	"github.com/gosuda/syncboard/internal/session"
	"github.com/gosuda/syncboard/internal/store/memory"
)

// ---------------------------------------------------------------------------
// Context helpers: inject session values the way the middleware does
// ---------------------------------------------------------------------------

func sessionCtx(sessionID, author string) context.Context {
	return middleware.WithSession(context.Background(), sessionID, author)
}

// ---------------------------------------------------------------------------
// Recording publisher
// ---------------------------------------------------------------------------

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Events() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func (r *recordingPublisher) count(k realtime.Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind() == k {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Test environment: every route over a real pipeline and memory store
// ---------------------------------------------------------------------------

type testEnv struct {
	api      humatest.TestAPI
	pipeline *pipeline.Pipeline
	resolver *session.Resolver
	pub      *recordingPublisher
	metrics  *realtime.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := testclock.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver := session.NewResolver(memory.NewSessionStore(clk), time.Hour, clk)
	pub := &recordingPublisher{}
	p := pipeline.New(memory.New(), resolver, pub, clk)
	metrics := realtime.NewMetrics()

	_, api := humatest.New(t)
	v1.RegisterBoardRoutes(api, p)
	v1.RegisterTicketRoutes(api, p)
	v1.RegisterBulkRoutes(api, p)
	v1.RegisterSessionRoutes(api, resolver)
	v1.RegisterRealtimeRoutes(api, metrics)

	return &testEnv{api: api, pipeline: p, resolver: resolver, pub: pub, metrics: metrics}
}

func (e *testEnv) board(t *testing.T, columns ...string) *domain.Board {
	t.Helper()

	b, err := e.pipeline.CreateBoard(context.Background(), pipeline.BoardInput{Name: "Board", Columns: columns}, pipeline.Caller{})
	require.NoError(t, err)
	return b
}

func (e *testEnv) ticket(t *testing.T, boardID string) *domain.Ticket {
	t.Helper()

	tk, err := e.pipeline.CreateTicket(context.Background(), pipeline.TicketInput{BoardID: boardID, Title: "Ticket"}, pipeline.Caller{})
	require.NoError(t, err)
	return tk
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// ---------------------------------------------------------------------------
// Failing services for store outage paths
// ---------------------------------------------------------------------------

var errStoreDown = errors.New("db connection lost") //nolint:gochecknoglobals // test fixture

type failingBoardService struct {
	v1.BoardService
}

func (failingBoardService) ListBoards(context.Context) ([]*domain.Board, error) {
	return nil, errStoreDown
}

func (failingBoardService) GetTicket(context.Context, string) (*domain.Ticket, error) {
	return nil, errStoreDown
}

type failingSessionService struct {
	v1.SessionService
}

func (failingSessionService) CreateSession(context.Context, string) (*domain.Session, error) {
	return nil, errStoreDown
}
