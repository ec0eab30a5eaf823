package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/jellyfish-risk-service/internal/adapter/http"
	"github.com/couchcryptid/jellyfish-risk-service/internal/app"
	"github.com/couchcryptid/jellyfish-risk-service/internal/config"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	a := app.New(cfg, app.Options{}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.Service, a.Geocoder, a.Service, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("jellyfish risk service started",
		"radius_km", cfg.SearchRadiusKm,
		"aggregate_timeout", cfg.AggregateTimeout,
		"cache_ttl", cfg.CacheTTL,
		"publishing", a.PublishingEnabled(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}

	logger.Info("shutdown complete")
}
