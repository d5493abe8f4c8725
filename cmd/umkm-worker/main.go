package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"umkm/internal/amqp"
	"umkm/internal/cli"
	"umkm/internal/config"
	applog "umkm/internal/log"
	"umkm/internal/metrics"
	"umkm/internal/services"
	gsheet "umkm/internal/sheets/google"
	"umkm/internal/storage"
	"umkm/internal/worker"
)

const shutdownGracePeriod = 30 * time.Second

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	if err := cfg.ValidateLedger(); err != nil {
		logger.Error("Ledger configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting ledger sync worker",
		"backend", cfg.DataBackend,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName,
		applog.FieldOperation, applog.OpStartup)

	metrics.Init(nil)

	ctx, done := cli.GracefulShutdown(logger, shutdownGracePeriod, nil)

	ledger, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	if err := ledger.EnsureHeader(ctx); err != nil {
		logger.Warn("Could not verify ledger header row", "error", err)
	}

	var (
		processor *services.SyncProcessor
		drainer   worker.Drainer
	)
	if cfg.DataBackend == config.BackendSQLite {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, storage.Options{})
		if err != nil {
			logger.Error("Failed to open outbox database", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()

		pcfg := services.DefaultSyncProcessorConfig()
		pcfg.PollInterval = cfg.SyncInterval
		pcfg.BatchSize = cfg.SyncBatchSize
		processor = services.NewSyncProcessor(repo, ledger, pcfg)
		drainer = processor
	}

	w := worker.NewSyncWorker(ledger, drainer)
	w.StartupSyncCheck(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if processor != nil {
		g.Go(func() error {
			if err := processor.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
			defer cancel()
			return processor.Stop(stopCtx)
		})
	}

	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		g.Go(func() error {
			err := consumer.ConsumeIncomeEvents(gctx, w.HandleIncomeEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

// serveMetrics exposes /metrics and /healthz until ctx is done.
func serveMetrics(ctx context.Context, addr string, logger *applog.Logger) error {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
