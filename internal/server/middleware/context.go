package middleware

import (
	"context"
)

type contextKey string

const (
	ContextKeySessionID contextKey = "session_id"
	ContextKeyAuthor    contextKey = "author"
)

// SessionIDFromContext returns the session id the request presented, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeySessionID).(string)
	return v, ok && v != ""
}

// AuthorFromContext returns the author the request claimed through the
// X-Author header, if any.
func AuthorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyAuthor).(string)
	return v, ok && v != ""
}

// WithSession returns ctx carrying sessionID and author. Empty values are
// not stored.
func WithSession(ctx context.Context, sessionID, author string) context.Context {
	if sessionID != "" {
		ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)
	}
	if author != "" {
		ctx = context.WithValue(ctx, ContextKeyAuthor, author)
	}
	return ctx
}
