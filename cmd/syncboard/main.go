package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/config"
	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/pipeline"
	"github.com/gosuda/syncboard/internal/realtime"
	"github.com/gosuda/syncboard/internal/server"
	"github.com/gosuda/syncboard/internal/session"
	"github.com/gosuda/syncboard/internal/store/memory"
	"github.com/gosuda/syncboard/internal/store/postgres"
	redisstore "github.com/gosuda/syncboard/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, closeSessions, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	resolver := session.NewResolver(sessions, cfg.Session.TTL, nil)

	// Realtime fan-out: registry, dispatcher and heartbeat.
	registry := realtime.NewRegistry(cfg.Realtime.QueueSize, nil, nil)
	broadcaster := realtime.NewBroadcaster(registry, cfg.Realtime.BroadcastBuffer)
	monitor := realtime.NewMonitor(registry, cfg.Realtime.HeartbeatInterval, cfg.Realtime.HeartbeatMaxMissed, nil)

	// The dispatcher outlives the signal context; Shutdown closes and drains it.
	go broadcaster.Run(context.WithoutCancel(ctx))
	go monitor.Run(ctx)

	p := pipeline.New(store, resolver, broadcaster, nil)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Pipeline:    p,
		Sessions:    resolver,
		Registry:    registry,
		Broadcaster: broadcaster,
	})

	// Start server in background goroutine.
	go func() {
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (pipeline.DataStore, func(), error) {
	if cfg.Store.Backend != config.StorePostgres {
		log.Info().Msg("using in-memory store")
		st := memory.New()
		return st, st.Close, nil
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	st, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.InitSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
	}
	log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("using postgres store")
	return st, st.Close, nil
}

func openSessions(ctx context.Context, cfg *config.Config) (domain.SessionStore, func(), error) {
	if cfg.Session.Backend != config.SessionRedis {
		return memory.NewSessionStore(nil), func() {}, nil
	}

	// Connect to Redis.
	st, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session store")
	return st, func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}, nil
}
