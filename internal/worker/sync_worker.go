package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"umkm/internal/amqp"
	"umkm/internal/core"
	"umkm/internal/metrics"
	"umkm/internal/ports"
)

// Drainer exports whatever the outbox still holds.
type Drainer interface {
	ProcessBatch(ctx context.Context) int
}

// SyncWorker mirrors income events into the spreadsheet ledger. Events are
// the fast path; the outbox drainer recovers anything they missed.
type SyncWorker struct {
	exporter ports.IncomeExporter
	drainer  Drainer
}

func NewSyncWorker(exporter ports.IncomeExporter, drainer Drainer) *SyncWorker {
	return &SyncWorker{exporter: exporter, drainer: drainer}
}

// HandleIncomeEvent applies one event to the ledger. A returned error makes
// the consumer requeue the message.
func (w *SyncWorker) HandleIncomeEvent(ctx context.Context, ev *amqp.IncomeEvent) error {
	err := w.apply(ctx, ev)
	metrics.IncEventConsumed(string(ev.Type), err)
	return err
}

func (w *SyncWorker) apply(ctx context.Context, ev *amqp.IncomeEvent) error {
	if w.exporter == nil {
		return errors.New("no income exporter configured")
	}

	slog.InfoContext(ctx, "Processing income event",
		"type", ev.Type,
		"income_id", ev.IncomeID,
		"umkm_id", ev.UMKMID)

	switch ev.Type {
	case amqp.IncomeCreated, amqp.IncomeUpdated:
		if ev.Income == nil {
			return fmt.Errorf("%s event for %s carries no income", ev.Type, ev.IncomeID)
		}
		if err := w.exporter.Upsert(ctx, ev.UMKMID, *ev.Income); err != nil {
			return fmt.Errorf("export income %s: %w", ev.IncomeID, err)
		}
	case amqp.IncomeDeleted:
		err := w.exporter.Remove(ctx, ev.IncomeID)
		if errors.Is(err, core.ErrNotFound) {
			slog.DebugContext(ctx, "Income row already absent from ledger", "income_id", ev.IncomeID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("remove income %s: %w", ev.IncomeID, err)
		}
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	slog.InfoContext(ctx, "Income event applied", "type", ev.Type, "income_id", ev.IncomeID)
	return nil
}

// StartupSyncCheck drains the outbox once, recovering from missed events or
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) {
	if w.drainer == nil {
		slog.InfoContext(ctx, "No outbox configured, skipping startup sync")
		return
	}
	n := w.drainer.ProcessBatch(ctx)
	slog.InfoContext(ctx, "Startup sync completed", "synced", n)
}
