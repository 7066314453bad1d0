package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/juju/clock"

	"github.com/gosuda/syncboard/internal/domain"
)

// SessionStore keeps sessions in process memory. Expired sessions are
// reported as not found and dropped lazily on access.
type SessionStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]domain.Session
}

func NewSessionStore(clk clock.Clock) *SessionStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SessionStore{
		clock:    clk,
		sessions: make(map[string]domain.Session),
	}
}

func (s *SessionStore) Create(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("memory.SessionStore.Create: %w", domain.ErrConflict)
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return nil, fmt.Errorf("memory.SessionStore.Get: %w", domain.ErrNotFound)
	}
	return &sess, nil
}

func (s *SessionStore) Update(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(sess.ID); !ok {
		return fmt.Errorf("memory.SessionStore.Update: %w", domain.ErrNotFound)
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(id); !ok {
		return fmt.Errorf("memory.SessionStore.Delete: %w", domain.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// live returns the session if present and unexpired. Callers must hold s.mu.
func (s *SessionStore) live(id string) (domain.Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	if !sess.ExpiresAt.IsZero() && !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return domain.Session{}, false
	}
	return sess, true
}
