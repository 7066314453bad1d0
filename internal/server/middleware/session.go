package middleware

import (
	"net/http"
	"strings"
)

const (
	HeaderSessionID = "X-Session-ID"
	HeaderAuthor    = "X-Author"
	QuerySessionID  = "session_id"
)

// Session copies the caller's session id and claimed author into the request
// context. The session id comes from the X-Session-ID header, falling back to
// the session_id query parameter. Nothing is validated here: an unknown
// session only affects attribution, never access.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.Header.Get(HeaderSessionID))
		if sessionID == "" {
			sessionID = strings.TrimSpace(r.URL.Query().Get(QuerySessionID))
		}
		author := r.Header.Get(HeaderAuthor)

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sessionID, author)))
	})
}
