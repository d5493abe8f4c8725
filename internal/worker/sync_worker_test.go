package worker

import (
	"context"
	"errors"
	"testing"

	"umkm/internal/amqp"
	"umkm/internal/core"
)

type fakeExporter struct {
	upserted map[core.ID]core.Income
	removed  []core.ID
	err      error
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{upserted: map[core.ID]core.Income{}}
}

func (f *fakeExporter) Upsert(_ context.Context, _ core.ID, in core.Income) error {
	if f.err != nil {
		return f.err
	}
	f.upserted[in.ID] = in
	return nil
}

func (f *fakeExporter) Remove(_ context.Context, id core.ID) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.upserted[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.upserted, id)
	f.removed = append(f.removed, id)
	return nil
}

type countingDrainer struct{ calls int }

func (c *countingDrainer) ProcessBatch(context.Context) int {
	c.calls++
	return 2
}

func TestHandleIncomeEvent(t *testing.T) {
	exp := newFakeExporter()
	w := NewSyncWorker(exp, nil)
	ctx := context.Background()
	in := core.Income{ID: "9", Amount: core.NewAmount(5000), Source: "Pasar", Date: "2024-02-01"}

	if err := w.HandleIncomeEvent(ctx, amqp.NewIncomeEvent(amqp.IncomeCreated, "u1", in)); err != nil {
		t.Fatalf("created: %v", err)
	}
	in.Source = "Pasar Pagi"
	if err := w.HandleIncomeEvent(ctx, amqp.NewIncomeEvent(amqp.IncomeUpdated, "u1", in)); err != nil {
		t.Fatalf("updated: %v", err)
	}
	if got := exp.upserted["9"].Source; got != "Pasar Pagi" {
		t.Fatalf("expected updated row, got %q", got)
	}

	if err := w.HandleIncomeEvent(ctx, amqp.NewIncomeDeletedEvent("u1", "9")); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	// A second delete finds no row and is not retried.
	if err := w.HandleIncomeEvent(ctx, amqp.NewIncomeDeletedEvent("u1", "9")); err != nil {
		t.Fatalf("repeated delete should be a no-op: %v", err)
	}
	if len(exp.removed) != 1 {
		t.Fatalf("expected one removal, got %v", exp.removed)
	}
}

func TestHandleIncomeEventErrors(t *testing.T) {
	ctx := context.Background()

	if err := NewSyncWorker(nil, nil).HandleIncomeEvent(ctx, amqp.NewIncomeDeletedEvent("u1", "1")); err == nil {
		t.Error("expected error without exporter")
	}

	exp := newFakeExporter()
	exp.err = errors.New("sheets unavailable")
	w := NewSyncWorker(exp, nil)
	ev := amqp.NewIncomeEvent(amqp.IncomeCreated, "u1", core.Income{ID: "1"})
	if err := w.HandleIncomeEvent(ctx, ev); err == nil {
		t.Error("expected exporter failure to surface for requeue")
	}

	if err := w.HandleIncomeEvent(ctx, &amqp.IncomeEvent{Type: amqp.IncomeUpdated, IncomeID: "1"}); err == nil {
		t.Error("expected error for update without income")
	}
	if err := w.HandleIncomeEvent(ctx, &amqp.IncomeEvent{Type: "income.archived", IncomeID: "1"}); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestStartupSyncCheck(t *testing.T) {
	d := &countingDrainer{}
	NewSyncWorker(newFakeExporter(), d).StartupSyncCheck(context.Background())
	if d.calls != 1 {
		t.Fatalf("expected one drain, got %d", d.calls)
	}
	NewSyncWorker(newFakeExporter(), nil).StartupSyncCheck(context.Background())
}
