package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"

	"character-server/internal/api"
	charapp "character-server/internal/app/character"
	"character-server/internal/platform/config"
	"character-server/internal/platform/db"
	"character-server/internal/platform/mq"
	"character-server/internal/platform/observability"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(cfg.Env)

	pg, err := db.Connect(ctx, cfg.DB.URL(), db.PoolOptions{
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("host", cfg.DB.Host).Msg("postgres connection failed")
	}
	defer pg.Close()

	if err := db.EnsureSchema(ctx, pg); err != nil {
		logger.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	publisher, err := mq.NewPublisher(cfg.NATS.URL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable; using noop publisher")
		publisher = mq.NewNoopPublisher()
	}
	defer publisher.Close()

	store := charapp.NewPostgresStore(pg)
	charSvc := charapp.NewService(logger, publisher, cfg.NATS.Subject)

	handler := api.NewHandler(logger, api.HandlerConfig{
		CorsOrigin:     cfg.CorsOrigin,
		MaxBodySize:    cfg.MaxRequestBody,
		RequestTimeout: cfg.RequestTimeout,
	}, store, charSvc, pg)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
