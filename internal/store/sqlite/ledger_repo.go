package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tkarema/campuscache/internal/model"
	"github.com/tkarema/campuscache/internal/store"
)

// LedgerRepo implements store.Ledger using SQLite.
// Atomicity per domain comes from the single-writer connection; concurrent
// MarkSynced calls are last-writer-wins.
type LedgerRepo struct{ db *DB }

var _ store.Ledger = (*LedgerRepo)(nil)

// NewLedgerRepo constructs a staleness-ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo { return &LedgerRepo{db: db} }

// LastSynced returns the recorded sync time and whether a record exists.
func (r *LedgerRepo) LastSynced(ctx context.Context, d model.Domain) (time.Time, bool, error) {
	const q = `SELECT last_synced_at FROM sync_ledger WHERE domain=?`
	var ms int64
	err := r.db.sql.QueryRowContext(ctx, q, d.String()).Scan(&ms)
	switch {
	case err == nil:
		return fromMillis(ms), true, nil
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, err
	}
}

// MarkSynced records a successful sync at the given time.
func (r *LedgerRepo) MarkSynced(ctx context.Context, d model.Domain, at time.Time) error {
	const q = `
INSERT INTO sync_ledger (domain, last_synced_at) VALUES (?,?)
ON CONFLICT(domain) DO UPDATE SET last_synced_at=excluded.last_synced_at`
	_, err := r.db.sql.ExecContext(ctx, q, d.String(), toMillis(at))
	return err
}

// Reset forgets all sync records.
func (r *LedgerRepo) Reset(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, `DELETE FROM sync_ledger`)
	return err
}
