package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"umkm/internal/amqp"
	"umkm/internal/cache"
	"umkm/internal/cli"
	apphttp "umkm/internal/http"
	applog "umkm/internal/log"
	"umkm/internal/metrics"
	"umkm/internal/services"
	"umkm/internal/session"
)

const (
	listCacheTTL        = 5 * time.Minute
	cacheSweepInterval  = 10 * time.Minute
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	logger.Info("Starting UMKM dashboard",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldOperation, applog.OpStartup)

	b := cli.OpenBackend(context.Background(), cfg, logger)

	// Income events are optional; the dashboard works without a broker.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, income events disabled", "error", err)
		} else {
			publisher = client
			logger.Info("Publishing income events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	incomes := services.NewIncomeService(b.Incomes, publisher,
		services.WithListCache(cfg.SessionCacheSize, listCacheTTL),
		services.WithCloser(b.Close))
	sessions := session.NewManager(b.Auth, cfg.SessionCacheSize, cfg.SessionTTL)

	metrics.Init(sessions.Active)

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register("sessions", sessions.Cache())
	caches.Register("revoked_tokens", sessions.Revoked())
	caches.Register("income_lists", incomes.ListCache())
	caches.StartCleanup(cacheSweepInterval)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Incomes:            incomes,
		Products:           b.Products,
		Profiles:           b.Profiles,
		Categories:         b.Categories,
		Auth:               b.Auth,
		Sessions:           sessions,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              b.Ping,
		SecureCookies:      cfg.SecureCookies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownGracePeriod, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := incomes.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	})

	logger.Info("HTTP server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed to start", "error", err, "addr", srv.Addr)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
