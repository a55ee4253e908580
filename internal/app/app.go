package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/auth"
	"github.com/seenup/seenup-server/internal/config"
	"github.com/seenup/seenup-server/internal/core"
	"github.com/seenup/seenup-server/internal/store"
	"github.com/seenup/seenup-server/internal/store/sqlite"
	transporthttp "github.com/seenup/seenup-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	sweeper         *core.Sweeper
	cleanupInterval time.Duration
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := core.NewRegistry()
	hub := core.NewHub(registry, st, logger)
	presence := core.NewPresence(st, hub, logger)
	channels := core.NewChannels(st, hub, logger)
	kicks := core.NewKickCoordinator(st, hub, logger)
	messages := core.NewMessages(st, hub, logger)
	dispatcher := core.NewDispatcher(st, channels, kicks, messages, hub, logger)
	sweeper := core.NewSweeper(st, hub, logger, cfg.InactivityAge())

	server := transporthttp.NewServer(transporthttp.Services{
		Presence:   presence,
		Dispatcher: dispatcher,
		Channels:   channels,
		Messages:   messages,
		Hub:        hub,
	}, authService, st, cfg, logger)

	return &App{
		server:          server,
		sweeper:         sweeper,
		cleanupInterval: cfg.CleanupInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.sweeper.Run(ctx, a.cleanupInterval)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// SweepInactiveChannels runs a single cleanup pass and closes the store.
func (a *App) SweepInactiveChannels(ctx context.Context) (int, error) {
	defer a.cleanup()
	return a.sweeper.SweepOnce(ctx)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
