package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/api/ws"
	"github.com/gosuda/syncboard/internal/config"
	"github.com/gosuda/syncboard/internal/pipeline"
	"github.com/gosuda/syncboard/internal/realtime"
	"github.com/gosuda/syncboard/internal/server/middleware"
	"github.com/gosuda/syncboard/internal/session"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Pipeline    *pipeline.Pipeline
	Sessions    *session.Resolver
	Registry    *realtime.Registry
	Broadcaster *realtime.Broadcaster // drained on Shutdown when set
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer  *http.Server
	registry    *realtime.Registry
	broadcaster *realtime.Broadcaster
}

// New creates a Server with all routes wired. ctx bounds the lifetime of
// background middleware state such as rate limiter cleanup.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RealIP)
	router.Use(middleware.AccessLog(log.Logger)...)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "X-Request-ID",
			middleware.HeaderSessionID, middleware.HeaderAuthor,
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	router.Use(middleware.Session)

	hub := ws.NewHub(deps.Registry, deps.Sessions, ws.Options{
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
	})

	s := &Server{
		router:      router,
		registry:    deps.Registry,
		broadcaster: deps.Broadcaster,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitBySession(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst))

		apiConfig := huma.DefaultConfig("Syncboard API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, deps)
	})

	// WebSocket routes.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		registerWSRoutes(r, hub)
	})

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, delivers the events that
// in-flight mutations already queued, and then closes every open socket.
// Hijacked WebSocket connections are not tracked by http.Server, so they are
// detached from the registry here.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.broadcaster != nil {
		s.broadcaster.Close()
		select {
		case <-s.broadcaster.Stopped():
		case <-ctx.Done():
			log.Warn().Msg("broadcaster did not drain before shutdown deadline")
		}
	}

	for _, c := range s.registry.ListAll() {
		s.registry.Detach(c)
	}
	if err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
