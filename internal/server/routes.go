package server

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/syncboard/internal/api/v1"
	"github.com/gosuda/syncboard/internal/api/ws"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterSessionRoutes(api, deps.Sessions)
	v1.RegisterBoardRoutes(api, deps.Pipeline)
	v1.RegisterTicketRoutes(api, deps.Pipeline)
	v1.RegisterBulkRoutes(api, deps.Pipeline)
	v1.RegisterRealtimeRoutes(api, deps.Registry.Metrics())
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	hub.Routes(r)
}

// originPatterns converts CORS origins into the host patterns the socket
// handshake checks. "*" allows any origin.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
