package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"umkm/internal/core"
	"umkm/internal/metrics"
	"umkm/internal/ports"
	"umkm/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending entries (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of entries to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before an entry is parked as error (default: 3)
	MaxRetries int

	// CleanupInterval is how often to delete exported entries (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old exported entries must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// Outbox is the durable queue of income changes awaiting export.
type Outbox interface {
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	GetIncome(ctx context.Context, id core.ID) (core.Income, core.ID, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64, maxAttempts int) error
	PendingSyncCount(ctx context.Context) (int64, error)
	CleanupSynced(ctx context.Context, before time.Time) (int64, error)
	RetryFailedSyncs(ctx context.Context) (int64, error)
}

// SyncProcessor drains the outbox into the spreadsheet ledger.
type SyncProcessor struct {
	outbox   Outbox
	exporter ports.IncomeExporter
	config   SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(outbox Outbox, exporter ports.IncomeExporter, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		outbox:   outbox,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	if p.outbox == nil || p.exporter == nil {
		p.mu.Unlock()
		return fmt.Errorf("sync processor needs an outbox and an exporter")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupSynced(ctx)
		}
	}
}

// ProcessBatch exports one batch of pending entries and returns how many
// succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.outbox.GetPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending sync entries", "error", err)
		return 0
	}
	defer p.reportPending(ctx)

	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	synced := 0
	for _, item := range items {
		select {
		case <-p.stopCh:
			return synced
		case <-ctx.Done():
			return synced
		default:
		}

		var processErr error
		switch item.Op {
		case storage.SyncUpsert:
			processErr = p.upsert(ctx, item)
		case storage.SyncRemove:
			processErr = p.exporter.Remove(ctx, item.IncomeID)
		default:
			processErr = fmt.Errorf("unknown operation: %s", item.Op)
		}
		metrics.IncSyncProcessed(string(item.Op), processErr)

		if processErr != nil {
			p.handleFailure(ctx, item, processErr)
			continue
		}
		if err := p.outbox.MarkSynced(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync complete", "id", item.ID, "error", err)
			continue
		}
		synced++
	}
	return synced
}

func (p *SyncProcessor) upsert(ctx context.Context, item storage.PendingSync) error {
	in, owner, err := p.outbox.GetIncome(ctx, item.IncomeID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted since; its remove entry follows in the queue.
		slog.DebugContext(ctx, "Income gone before export, skipping", "income_id", item.IncomeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get income %s: %w", item.IncomeID, err)
	}
	if err := p.exporter.Upsert(ctx, owner, in); err != nil {
		return fmt.Errorf("export income %s: %w", item.IncomeID, err)
	}
	slog.InfoContext(ctx, "Exported income", "income_id", in.ID, "umkm_id", owner)
	return nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.PendingSync, processErr error) {
	attempt := item.Attempts + 1
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"op", item.Op,
		"attempt", attempt,
		"error", processErr)

	if err := p.outbox.MarkSyncError(ctx, item.ID, p.config.MaxRetries); err != nil {
		slog.ErrorContext(ctx, "Failed to record sync failure", "id", item.ID, "error", err)
		return
	}
	if attempt >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Sync entry failed permanently after max retries",
			"id", item.ID,
			"income_id", item.IncomeID,
			"attempts", attempt)
	}
}

func (p *SyncProcessor) reportPending(ctx context.Context) {
	n, err := p.outbox.PendingSyncCount(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Failed to count pending sync entries", "error", err)
		return
	}
	metrics.SetSyncPending(n)
}

func (p *SyncProcessor) cleanupSynced(ctx context.Context) {
	n, err := p.outbox.CleanupSynced(ctx, time.Now().Add(-p.config.CleanupAge))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clean up synced entries", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up synced entries", "count", n)
	}
}

// RetryFailed puts parked entries back in the queue.
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.outbox.RetryFailedSyncs(ctx)
}
