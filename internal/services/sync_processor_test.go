package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"umkm/internal/core"
	"umkm/internal/storage"
)

func TestNewSyncProcessor(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, config)

	if processor == nil {
		t.Error("NewSyncProcessor should return non-nil processor")
	}
	if processor.outbox != nil {
		t.Error("outbox should be nil when passed nil")
	}
	if processor.exporter != nil {
		t.Error("exporter should be nil when passed nil")
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.CleanupInterval != 1*time.Hour {
		t.Errorf("expected CleanupInterval 1h, got %v", config.CleanupInterval)
	}
	if config.CleanupAge != 24*time.Hour {
		t.Errorf("expected CleanupAge 24h, got %v", config.CleanupAge)
	}
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, config)

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	config.PollInterval = 100 * time.Millisecond
	processor := NewSyncProcessor(nil, nil, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor.mu.Lock()
	processor.running = true
	processor.mu.Unlock()

	// Second start should fail
	err := processor.Start(ctx)
	if err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, config)

	ctx := context.Background()

	// Stop when not running should not error
	err := processor.Stop(ctx)
	if err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestSyncProcessorConfig_CustomValues(t *testing.T) {
	config := SyncProcessorConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       20,
		MaxRetries:      5,
		CleanupInterval: 30 * time.Minute,
		CleanupAge:      12 * time.Hour,
	}

	processor := NewSyncProcessor(nil, nil, config)

	if processor.config.PollInterval != 5*time.Second {
		t.Errorf("expected custom PollInterval 5s, got %v", processor.config.PollInterval)
	}
	if processor.config.BatchSize != 20 {
		t.Errorf("expected custom BatchSize 20, got %d", processor.config.BatchSize)
	}
	if processor.config.MaxRetries != 5 {
		t.Errorf("expected custom MaxRetries 5, got %d", processor.config.MaxRetries)
	}
	if processor.config.CleanupInterval != 30*time.Minute {
		t.Errorf("expected custom CleanupInterval 30m, got %v", processor.config.CleanupInterval)
	}
	if processor.config.CleanupAge != 12*time.Hour {
		t.Errorf("expected custom CleanupAge 12h, got %v", processor.config.CleanupAge)
	}
}

type fakeOutbox struct {
	pending  []storage.PendingSync
	incomes  map[core.ID]core.Income
	synced   []int64
	failed   map[int64]int
	cleaned  int
	fetchErr error
}

func (f *fakeOutbox) GetPendingSync(_ context.Context, limit int) ([]storage.PendingSync, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) GetIncome(_ context.Context, id core.ID) (core.Income, core.ID, error) {
	in, ok := f.incomes[id]
	if !ok {
		return core.Income{}, "", core.ErrNotFound
	}
	return in, "u1", nil
}

func (f *fakeOutbox) MarkSynced(_ context.Context, id int64) error {
	f.synced = append(f.synced, id)
	return nil
}

func (f *fakeOutbox) MarkSyncError(_ context.Context, id int64, _ int) error {
	if f.failed == nil {
		f.failed = map[int64]int{}
	}
	f.failed[id]++
	return nil
}

func (f *fakeOutbox) PendingSyncCount(context.Context) (int64, error) {
	return int64(len(f.pending)), nil
}

func (f *fakeOutbox) CleanupSynced(context.Context, time.Time) (int64, error) {
	f.cleaned++
	return 0, nil
}

func (f *fakeOutbox) RetryFailedSyncs(context.Context) (int64, error) {
	return int64(len(f.failed)), nil
}

type fakeExporter struct {
	upserts []core.ID
	removes []core.ID
	err     error
}

func (f *fakeExporter) Upsert(_ context.Context, _ core.ID, in core.Income) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, in.ID)
	return nil
}

func (f *fakeExporter) Remove(_ context.Context, id core.ID) error {
	if f.err != nil {
		return f.err
	}
	f.removes = append(f.removes, id)
	return nil
}

func TestSyncProcessor_ProcessBatch(t *testing.T) {
	outbox := &fakeOutbox{
		pending: []storage.PendingSync{
			{ID: 1, IncomeID: "a", Op: storage.SyncUpsert},
			{ID: 2, IncomeID: "gone", Op: storage.SyncUpsert},
			{ID: 3, IncomeID: "b", Op: storage.SyncRemove},
			{ID: 4, IncomeID: "c", Op: "bogus"},
		},
		incomes: map[core.ID]core.Income{"a": {ID: "a", Source: "Pasar"}},
	}
	exporter := &fakeExporter{}
	processor := NewSyncProcessor(outbox, exporter, DefaultSyncProcessorConfig())

	if n := processor.ProcessBatch(context.Background()); n != 3 {
		t.Fatalf("expected 3 synced entries, got %d", n)
	}
	if len(exporter.upserts) != 1 || exporter.upserts[0] != "a" {
		t.Errorf("unexpected upserts %v", exporter.upserts)
	}
	if len(exporter.removes) != 1 || exporter.removes[0] != "b" {
		t.Errorf("unexpected removes %v", exporter.removes)
	}
	if outbox.failed[4] != 1 {
		t.Errorf("unknown op should record a failure, got %v", outbox.failed)
	}
	if len(outbox.synced) != 3 {
		t.Errorf("expected 3 entries marked synced, got %v", outbox.synced)
	}
}

func TestSyncProcessor_ExporterFailure(t *testing.T) {
	outbox := &fakeOutbox{
		pending: []storage.PendingSync{{ID: 7, IncomeID: "a", Op: storage.SyncUpsert, Attempts: 2}},
		incomes: map[core.ID]core.Income{"a": {ID: "a"}},
	}
	processor := NewSyncProcessor(outbox, &fakeExporter{err: errors.New("quota exceeded")}, DefaultSyncProcessorConfig())

	if n := processor.ProcessBatch(context.Background()); n != 0 {
		t.Fatalf("expected no synced entries, got %d", n)
	}
	if outbox.failed[7] != 1 || len(outbox.synced) != 0 {
		t.Fatalf("expected failure recorded, got failed=%v synced=%v", outbox.failed, outbox.synced)
	}
}

func TestSyncProcessor_FetchError(t *testing.T) {
	outbox := &fakeOutbox{fetchErr: errors.New("database is locked")}
	processor := NewSyncProcessor(outbox, &fakeExporter{}, DefaultSyncProcessorConfig())

	if n := processor.ProcessBatch(context.Background()); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestSyncProcessor_StartRequiresCollaborators(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, DefaultSyncProcessorConfig())
	if err := processor.Start(context.Background()); err == nil {
		t.Fatal("expected error without outbox and exporter")
	}
	if processor.IsRunning() {
		t.Fatal("processor should not be running")
	}
}

func TestSyncProcessor_StartStop(t *testing.T) {
	outbox := &fakeOutbox{}
	config := DefaultSyncProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	processor := NewSyncProcessor(outbox, &fakeExporter{}, config)

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !processor.IsRunning() {
		t.Fatal("processor should be running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := processor.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processor.IsRunning() {
		t.Fatal("processor should be stopped")
	}
}
