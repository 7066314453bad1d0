package v1

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/pipeline"
	"github.com/gosuda/syncboard/internal/server/middleware"
)

// toHTTPError maps a service error onto a problem response. Validation
// errors carry their message to the client; store failures do not.
func toHTTPError(err error, resource, action string) error {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		return huma.Error400BadRequest(publicMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(resource + " not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(resource + " already exists")
	default:
		log.Error().Err(err).Str("resource", resource).Str("action", action).Msg("request failed")
		return huma.Error500InternalServerError("failed to " + action + " " + resource)
	}
}

// publicMessage strips the "pkg.Type.Method:" call-site prefixes and the
// trailing sentinel text from a wrapped validation error.
func publicMessage(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrInvalid.Error())
	parts := strings.Split(msg, ": ")
	out := parts[:0]
	for _, p := range parts {
		if p == domain.ErrInvalid.Error() || isCallSite(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return "invalid request"
	}
	return strings.Join(out, ": ")
}

func isCallSite(s string) bool {
	if strings.ContainsAny(s, " \"") {
		return false
	}
	return strings.Count(s, ".") >= 1 && strings.IndexByte(s, '.') > 0
}

// callerFrom builds the pipeline caller from the session middleware values.
// A body-supplied author takes precedence over the X-Author header; either
// way a resolvable session overrides both.
func callerFrom(ctx context.Context, bodyAuthor string) pipeline.Caller {
	c := pipeline.Caller{Author: bodyAuthor}
	if id, ok := middleware.SessionIDFromContext(ctx); ok {
		c.SessionID = id
	}
	if c.Author == "" {
		if a, ok := middleware.AuthorFromContext(ctx); ok {
			c.Author = a
		}
	}
	return c
}
