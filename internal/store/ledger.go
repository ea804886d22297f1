package store

import (
	"context"
	"time"

	"github.com/tkarema/campuscache/internal/model"
)

// Ledger persists the last successful sync time per domain.
// An absent record means "never synced" and is treated as infinitely stale.
type Ledger interface {
	// LastSynced returns the recorded sync time and whether a record exists.
	LastSynced(ctx context.Context, d model.Domain) (time.Time, bool, error)
	// MarkSynced records a successful sync at the given time (last-writer-wins).
	MarkSynced(ctx context.Context, d model.Domain, at time.Time) error
	// Reset forgets all sync records (explicit cache clear).
	Reset(ctx context.Context) error
}

// NeedsSync reports whether a domain is due: never synced, or older than interval.
func NeedsSync(ctx context.Context, l Ledger, d model.Domain, interval time.Duration, now time.Time) (bool, error) {
	at, ok, err := l.LastSynced(ctx, d)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return now.Sub(at) > interval, nil
}
