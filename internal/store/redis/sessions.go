package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/syncboard/internal/domain"
)

// SessionStore keeps sessions in Redis and lets key expiry enforce the TTL.
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

func New(ctx context.Context, addr, password string, db int) (*SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &SessionStore{client: client, now: time.Now}, nil
}

func (s *SessionStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis.SessionStore.Close: %w", err)
	}
	return nil
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	payload, err := encodeSession(sess)
	if err != nil {
		return fmt.Errorf("redis.SessionStore.Create: %w", err)
	}

	ttl := ttlUntil(sess.ExpiresAt, s.now())
	if ttl <= 0 {
		return fmt.Errorf("redis.SessionStore.Create: session already expired: %w", domain.ErrInvalid)
	}

	err = s.client.SetArgs(ctx, SessionKey(sess.ID), payload, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis.SessionStore.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("redis.SessionStore.Create: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis.SessionStore.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis.SessionStore.Get: %w", err)
	}

	sess, err := decodeSession(raw)
	if err != nil {
		return nil, fmt.Errorf("redis.SessionStore.Get: %w", err)
	}
	return sess, nil
}

// Update rewrites the session body and keeps the remaining TTL.
func (s *SessionStore) Update(ctx context.Context, sess *domain.Session) error {
	payload, err := encodeSession(sess)
	if err != nil {
		return fmt.Errorf("redis.SessionStore.Update: %w", err)
	}

	err = s.client.SetArgs(ctx, SessionKey(sess.ID), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis.SessionStore.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("redis.SessionStore.Update: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, SessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis.SessionStore.Delete: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("redis.SessionStore.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// SessionKey returns the Redis key holding a session.
func SessionKey(id string) string {
	return "session:" + id
}

func encodeSession(sess *domain.Session) ([]byte, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return payload, nil
}

func decodeSession(raw []byte) (*domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func ttlUntil(expiresAt, now time.Time) time.Duration {
	return expiresAt.Sub(now)
}
