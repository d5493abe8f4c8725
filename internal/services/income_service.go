package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"umkm/internal/amqp"
	"umkm/internal/cache"
	"umkm/internal/core"
	"umkm/internal/income"
	"umkm/internal/metrics"
	"umkm/internal/ports"
)

// EventPublisher announces stored income changes.
type EventPublisher interface {
	PublishIncomeEvent(ctx context.Context, ev *amqp.IncomeEvent) error
	Close() error
}

// IncomeService orchestrates income mutations: store first, then publish,
// then fold the stored record into the per-UMKM list cache.
type IncomeService struct {
	store     ports.IncomeStore
	publisher EventPublisher
	lists     *cache.LRUCache[[]core.Income]
	closers   []func() error

	// gens counts mutations per list key. A list read from the store is
	// only cached if no mutation landed while it was being read.
	mu   sync.Mutex
	gens map[string]uint64
}

type IncomeServiceOption func(*IncomeService)

// WithListCache keeps up to size income lists in memory for ttl.
func WithListCache(size int, ttl time.Duration) IncomeServiceOption {
	return func(s *IncomeService) {
		s.lists = cache.NewLRUCache[[]core.Income](size, ttl)
	}
}

// WithCloser registers a resource released by Close.
func WithCloser(fn func() error) IncomeServiceOption {
	return func(s *IncomeService) {
		if fn != nil {
			s.closers = append(s.closers, fn)
		}
	}
}

func NewIncomeService(store ports.IncomeStore, publisher EventPublisher, opts ...IncomeServiceOption) *IncomeService {
	s := &IncomeService{store: store, publisher: publisher, gens: make(map[string]uint64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCache exposes the list cache so the cache manager can sweep it.
func (s *IncomeService) ListCache() *cache.LRUCache[[]core.Income] {
	return s.lists
}

// List returns the UMKM's incomes, from cache when present.
func (s *IncomeService) List(ctx context.Context, p core.Principal) ([]core.Income, error) {
	key := string(p.UMKMID)
	if s.lists != nil && key != "" {
		if list, ok := s.lists.Get(key); ok {
			return append([]core.Income(nil), list...), nil
		}
	}
	gen := s.generation(key)
	list, err := s.store.ListIncomes(ctx, p)
	if err != nil {
		return nil, err
	}
	if s.lists != nil && key != "" {
		s.fill(key, gen, list)
	}
	return list, nil
}

func (s *IncomeService) Create(ctx context.Context, p core.Principal, in core.Income) (core.Income, error) {
	saved, err := s.store.CreateIncome(ctx, p, in)
	metrics.IncIncomeMutation("create", err)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}
	s.publish(ctx, amqp.NewIncomeEvent(amqp.IncomeCreated, p.UMKMID, saved))
	s.reduce(p, income.Created{Income: saved})
	return saved, nil
}

func (s *IncomeService) Update(ctx context.Context, p core.Principal, in core.Income) (core.Income, error) {
	saved, err := s.store.UpdateIncome(ctx, p, in)
	metrics.IncIncomeMutation("update", err)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.publish(ctx, amqp.NewIncomeEvent(amqp.IncomeUpdated, p.UMKMID, saved))
	s.reduce(p, income.Updated{Income: saved})
	return saved, nil
}

func (s *IncomeService) Delete(ctx context.Context, p core.Principal, id core.ID) error {
	err := s.store.DeleteIncome(ctx, p, id)
	metrics.IncIncomeMutation("delete", err)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	s.publish(ctx, amqp.NewIncomeDeletedEvent(p.UMKMID, id))
	s.reduce(p, income.Deleted{ID: id})
	return nil
}

// Forget drops the cached list for p.
func (s *IncomeService) Forget(p core.Principal) {
	if s.lists == nil {
		return
	}
	key := string(p.UMKMID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	s.lists.Delete(key)
}

func (s *IncomeService) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}

// fill caches list unless key was mutated after gen was taken.
func (s *IncomeService) fill(key string, gen uint64, list []core.Income) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return
	}
	s.lists.Set(key, append([]core.Income(nil), list...))
}

func (s *IncomeService) reduce(p core.Principal, ev income.Event) {
	if s.lists == nil {
		return
	}
	key := string(p.UMKMID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	s.lists.Update(key, func(list []core.Income) []core.Income {
		return income.Reduce(list, ev)
	})
}

// publish never fails the request: the record is already stored.
func (s *IncomeService) publish(ctx context.Context, ev *amqp.IncomeEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping income event", "type", ev.Type)
		return
	}
	err := s.publisher.PublishIncomeEvent(ctx, ev)
	metrics.IncEventPublished(string(ev.Type), err)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish income event",
			"type", ev.Type, "income_id", ev.IncomeID, "error", err)
	}
}

// Close releases the publisher and every registered resource.
func (s *IncomeService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close income service: %w", errors.Join(errs...))
	}
	return nil
}
