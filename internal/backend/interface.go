package backend

import (
	"context"
	"errors"
	"fmt"

	"umkm/internal/memory"
	"umkm/internal/ports"
	"umkm/internal/storage"
)

// ErrUnsupported is returned for operations a backend cannot perform.
var ErrUnsupported = errors.New("operation not supported by backend")

type Type string

const (
	RemoteBackend Type = "remote"
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case RemoteBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func Types() []Type {
	return []Type{RemoteBackend, SQLiteBackend, MemoryBackend}
}

// Backend bundles the stores one data backend provides. Repo is set only
// for sqlite, Memory only for memory.
type Backend struct {
	Type       Type
	Incomes    ports.IncomeStore
	Products   ports.ProductStore
	Profiles   ports.ProfileStore
	Categories ports.CategoryReader
	Auth       ports.Authenticator

	Repo   *storage.SQLiteRepository
	Memory *memory.Store

	ping    func(context.Context) error
	closers []func() error
}

// Ping checks the backend can serve requests.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Approve marks a pending account as approved. Remote accounts are
// approved by the API operator.
func (b *Backend) Approve(ctx context.Context, email string) error {
	switch {
	case b.Repo != nil:
		return b.Repo.ApproveAccount(ctx, email)
	case b.Memory != nil:
		return b.Memory.Approve(email)
	default:
		return fmt.Errorf("approve account on %s backend: %w", b.Type, ErrUnsupported)
	}
}

func (b *Backend) Close() error {
	var errs []error
	for _, fn := range b.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
