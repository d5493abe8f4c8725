package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"umkm/internal/core"
	"umkm/internal/ports"

	_ "modernc.org/sqlite"
)

type Options struct {
	Tokens ports.TokenIssuer
	// AutoApprove activates new accounts immediately instead of leaving
	// them pending.
	AutoApprove bool
}

type SQLiteRepository struct {
	db          *sql.DB
	tokens      ports.TokenIssuer
	autoApprove bool
	newID       func() core.ID
}

func NewSQLiteRepository(dbPath string, opts Options) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db, opts), nil
}

// NewWithDB wraps an already migrated database handle.
func NewWithDB(db *sql.DB, opts Options) *SQLiteRepository {
	return &SQLiteRepository{
		db:          db,
		tokens:      opts.Tokens,
		autoApprove: opts.AutoApprove,
		newID:       func() core.ID { return core.ID(uuid.NewString()) },
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scope(p core.Principal) (string, error) {
	if p.UMKMID.IsZero() {
		return "", core.ErrMissingPrincipal
	}
	return string(p.UMKMID), nil
}

func parseStoredAmount(s string) (core.Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Amount{}, fmt.Errorf("stored amount %q: %w", s, core.ErrInvalidAmount)
	}
	return core.AmountFromDecimal(d), nil
}

const incomeColumns = `id, amount, source, date, notes, frequency`

func scanIncome(row interface{ Scan(...any) error }) (core.Income, error) {
	var (
		in        core.Income
		id        string
		amount    string
		frequency string
	)
	if err := row.Scan(&id, &amount, &in.Source, &in.Date, &in.Notes, &frequency); err != nil {
		return core.Income{}, err
	}
	a, err := parseStoredAmount(amount)
	if err != nil {
		return core.Income{}, err
	}
	in.ID = core.ID(id)
	in.Amount = a
	in.Frequency = core.Frequency(frequency)
	return in, nil
}

// ListIncomes implements ports.IncomeStore.
func (r *SQLiteRepository) ListIncomes(ctx context.Context, p core.Principal) ([]core.Income, error) {
	owner, err := scope(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+incomeColumns+` FROM incomes WHERE umkm_id = ? ORDER BY date, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	out := []core.Income{}
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomes: %w", err)
	}
	return out, nil
}

// GetIncome returns one income and the UMKM that owns it.
func (r *SQLiteRepository) GetIncome(ctx context.Context, id core.ID) (core.Income, core.ID, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+incomeColumns+`, umkm_id FROM incomes WHERE id = ?`, string(id))
	var (
		in        core.Income
		rawID     string
		amount    string
		frequency string
		owner     string
	)
	err := row.Scan(&rawID, &amount, &in.Source, &in.Date, &in.Notes, &frequency, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, "", core.ErrNotFound
	}
	if err != nil {
		return core.Income{}, "", fmt.Errorf("get income %s: %w", id, err)
	}
	a, err := parseStoredAmount(amount)
	if err != nil {
		return core.Income{}, "", err
	}
	in.ID, in.Amount, in.Frequency = core.ID(rawID), a, core.Frequency(frequency)
	return in, core.ID(owner), nil
}

// CreateIncome implements ports.IncomeStore. The insert and its outbox
// entry commit together.
func (r *SQLiteRepository) CreateIncome(ctx context.Context, p core.Principal, in core.Income) (core.Income, error) {
	owner, err := scope(p)
	if err != nil {
		return core.Income{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	in.ID = r.newID()

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO incomes (id, umkm_id, amount, source, date, notes, frequency) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(in.ID), owner, in.Amount.String(), in.Source, in.Date, in.Notes, string(in.Frequency)); err != nil {
			return fmt.Errorf("insert income: %w", err)
		}
		return enqueue(ctx, tx, in.ID, owner, SyncUpsert)
	})
	if err != nil {
		return core.Income{}, err
	}

	slog.InfoContext(ctx, "Income saved to SQLite",
		"id", in.ID,
		"umkm_id", owner,
		"amount", in.Amount.String(),
		"date", in.Date)
	return in, nil
}

// UpdateIncome implements ports.IncomeStore.
func (r *SQLiteRepository) UpdateIncome(ctx context.Context, p core.Principal, in core.Income) (core.Income, error) {
	owner, err := scope(p)
	if err != nil {
		return core.Income{}, err
	}
	if in.ID.IsZero() {
		return core.Income{}, core.ErrNotFound
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE incomes SET amount = ?, source = ?, date = ?, notes = ?, frequency = ?,
			        version = version + 1, updated_at = CURRENT_TIMESTAMP
			  WHERE id = ? AND umkm_id = ?`,
			in.Amount.String(), in.Source, in.Date, in.Notes, string(in.Frequency), string(in.ID), owner)
		if err != nil {
			return fmt.Errorf("update income: %w", err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		return enqueue(ctx, tx, in.ID, owner, SyncUpsert)
	})
	if err != nil {
		return core.Income{}, err
	}
	return in, nil
}

// DeleteIncome implements ports.IncomeStore.
func (r *SQLiteRepository) DeleteIncome(ctx context.Context, p core.Principal, id core.ID) error {
	owner, err := scope(p)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM incomes WHERE id = ? AND umkm_id = ?`, string(id), owner)
		if err != nil {
			return fmt.Errorf("delete income: %w", err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		return enqueue(ctx, tx, id, owner, SyncRemove)
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SyncOp is the ledger operation an outbox entry asks for.
type SyncOp string

const (
	SyncUpsert SyncOp = "upsert"
	SyncRemove SyncOp = "remove"
)

// PendingSync is one outbox entry waiting for export.
type PendingSync struct {
	ID        int64
	IncomeID  core.ID
	UMKMID    core.ID
	Op        SyncOp
	Attempts  int
	CreatedAt time.Time
}

func enqueue(ctx context.Context, tx *sql.Tx, id core.ID, owner string, op SyncOp) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_queue (income_id, umkm_id, op) VALUES (?, ?, ?)`,
		string(id), owner, string(op)); err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// GetPendingSync returns up to limit outbox entries, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, income_id, umkm_id, op, attempts, created_at
		   FROM sync_queue WHERE status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var (
			ps              PendingSync
			incomeID, owner string
			op              string
		)
		if err := rows.Scan(&ps.ID, &incomeID, &owner, &op, &ps.Attempts, &ps.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		ps.IncomeID, ps.UMKMID, ps.Op = core.ID(incomeID), core.ID(owner), SyncOp(op)
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync: %w", err)
	}
	return out, nil
}

// MarkSynced marks an outbox entry as exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'synced', synced_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	slog.InfoContext(ctx, "Sync entry marked as synced", "id", id)
	return nil
}

// MarkSyncError records a failed attempt. Entries that failed maxAttempts
// times stop being retried.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, maxAttempts int) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue
		    SET attempts = attempts + 1,
		        status = CASE WHEN attempts + 1 >= ? THEN 'error' ELSE 'pending' END
		  WHERE id = ?`, maxAttempts, id); err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	slog.WarnContext(ctx, "Sync entry failed", "id", id)
	return nil
}

// PendingSyncCount returns the number of entries still waiting.
func (r *SQLiteRepository) PendingSyncCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending sync: %w", err)
	}
	return n, nil
}

// CleanupSynced deletes exported entries older than before.
func (r *SQLiteRepository) CleanupSynced(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = 'synced' AND synced_at < ?`,
		before.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("cleanup synced: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RetryFailedSyncs puts every errored entry back in the queue.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'pending', attempts = 0 WHERE status = 'error'`)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
