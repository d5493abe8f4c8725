package backend

import (
	"context"
	"fmt"
	"log/slog"

	"umkm/internal/memory"
	"umkm/internal/remote"
	"umkm/internal/session"
	"umkm/internal/storage"
)

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create builds the backend cfg selects.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case RemoteBackend:
		return f.createRemote(ctx, cfg)
	case SQLiteBackend:
		return f.createSQLite(cfg)
	case MemoryBackend:
		return f.createMemory(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *Factory) createRemote(ctx context.Context, cfg Config) (*Backend, error) {
	client, err := remote.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote API client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		// The API may come up after us; readiness reports it until then.
		f.logger.Warn("Remote API not reachable at startup", "base_url", cfg.APIBaseURL, "error", err)
	}

	f.logger.Info("Initialized remote backend", "base_url", cfg.APIBaseURL, "timeout", cfg.APITimeout)

	return &Backend{
		Type:       RemoteBackend,
		Incomes:    client,
		Products:   client,
		Profiles:   client,
		Categories: client,
		Auth:       client,
		ping:       client.Ping,
	}, nil
}

func (f *Factory) createSQLite(cfg Config) (*Backend, error) {
	issuer, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, storage.Options{
		Tokens:      issuer,
		AutoApprove: cfg.AutoApprove,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath, "auto_approve", cfg.AutoApprove)

	return &Backend{
		Type:       SQLiteBackend,
		Incomes:    repo,
		Products:   repo,
		Profiles:   repo,
		Categories: repo,
		Auth:       repo,
		Repo:       repo,
		ping:       repo.Ping,
		closers:    []func() error{repo.Close},
	}, nil
}

func (f *Factory) createMemory(cfg Config) (*Backend, error) {
	issuer, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	dataDir := cfg.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir, issuer, cfg.AutoApprove)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir, "auto_approve", cfg.AutoApprove)

	return &Backend{
		Type:       MemoryBackend,
		Incomes:    store,
		Products:   store,
		Profiles:   store,
		Categories: store,
		Auth:       store,
		Memory:     store,
	}, nil
}
