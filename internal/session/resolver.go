// Package session binds opaque session ids to display names and resolves
// the actor credited with a mutation.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
)

// AnonymousUser is credited when neither a session nor an author is supplied.
const AnonymousUser = "Anonymous User"

const maxUsernameLen = 100

// ResolveAuthor applies the attribution rule: a valid session's username
// overrides whatever the request supplied; without one the supplied value is
// used verbatim, falling back to AnonymousUser when it is blank.
func ResolveAuthor(sess *domain.Session, supplied string) string {
	if sess != nil && sess.Username != "" {
		return sess.Username
	}
	if strings.TrimSpace(supplied) == "" {
		return AnonymousUser
	}
	return supplied
}

// NormalizeUsername trims name and checks its length.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("username is required: %w", domain.ErrInvalid)
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return "", fmt.Errorf("username exceeds %d characters: %w", maxUsernameLen, domain.ErrInvalid)
	}
	return name, nil
}

type Resolver struct {
	store domain.SessionStore
	ttl   time.Duration
	clock clock.Clock
}

func NewResolver(store domain.SessionStore, ttl time.Duration, clk clock.Clock) *Resolver {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Resolver{store: store, ttl: ttl, clock: clk}
}

// CreateSession starts a session for username and returns it with its new id.
func (r *Resolver) CreateSession(ctx context.Context, username string) (*domain.Session, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("session.Resolver.CreateSession: %w", err)
	}

	now := r.clock.Now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Username:  name,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	if err := r.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("session.Resolver.CreateSession: %w", err)
	}
	return sess, nil
}

// Resolve returns the live session for id, or domain.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session.Resolver.Resolve: %w", domain.ErrNotFound)
	}
	sess, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session.Resolver.Resolve: %w", err)
	}
	return sess, nil
}

func (r *Resolver) UpdateUsername(ctx context.Context, id, username string) (*domain.Session, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("session.Resolver.UpdateUsername: %w", err)
	}

	sess, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session.Resolver.UpdateUsername: %w", err)
	}
	sess.Username = name
	sess.UpdatedAt = r.clock.Now()

	if err := r.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("session.Resolver.UpdateUsername: %w", err)
	}
	return sess, nil
}

func (r *Resolver) Destroy(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("session.Resolver.Destroy: %w", err)
	}
	return nil
}

// Attribute resolves the display name to credit for a mutation. Unknown or
// expired sessions fall back to the supplied author; a session store outage
// does too, and is logged.
func (r *Resolver) Attribute(ctx context.Context, sessionID, supplied string) string {
	if sessionID == "" {
		return ResolveAuthor(nil, supplied)
	}

	sess, err := r.Resolve(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("session lookup failed, using supplied author")
		}
		return ResolveAuthor(nil, supplied)
	}
	return ResolveAuthor(sess, supplied)
}
