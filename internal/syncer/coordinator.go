// Package syncer reconciles remote catalog data into the local cache,
// gated by per-domain staleness intervals.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/catalog"
	"github.com/tkarema/campuscache/internal/model"
	"github.com/tkarema/campuscache/internal/store"
)

// defaultPageSize is the page size for the recent/trending resource feeds.
const defaultPageSize = 50

// Coordinator performs one domain's sync: consult the staleness ledger, fetch
// from the remote catalog, reconcile into the cache, advance the ledger.
type Coordinator struct {
	api       catalog.API
	cache     store.CacheStore
	ledger    store.Ledger
	log       *zap.Logger
	intervals model.Intervals
	pageSize  int
	clock     clockwork.Clock
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithIntervals overrides the default staleness intervals.
func WithIntervals(iv model.Intervals) Option {
	return func(c *Coordinator) { c.intervals = iv }
}

// WithPageSize overrides the resource feed page size.
func WithPageSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithClock substitutes the time source (tests).
func WithClock(clk clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// New constructs a Coordinator with injected collaborators.
func New(api catalog.API, cache store.CacheStore, ledger store.Ledger, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:       api,
		cache:     cache,
		ledger:    ledger,
		log:       log,
		intervals: model.DefaultIntervals(),
		pageSize:  defaultPageSize,
		clock:     clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Sync brings one domain up to date. Without force, a fresh domain is skipped
// with no network call. The ledger advances only on success, so a failed
// attempt stays due.
func (c *Coordinator) Sync(ctx context.Context, d model.Domain, force bool) (model.Outcome, error) {
	if !force {
		due, err := store.NeedsSync(ctx, c.ledger, d, c.intervals.For(d), c.clock.Now())
		if err != nil {
			return 0, fmt.Errorf("ledger: %w", err)
		}
		if !due {
			c.log.Debug("sync skipped, cache fresh", zap.Stringer("domain", d))
			return model.Skipped, nil
		}
	}

	var err error
	switch d {
	case model.Faculties:
		err = c.syncFaculties(ctx)
	case model.Programs:
		err = c.syncPrograms(ctx)
	case model.CourseUnits:
		err = c.syncCourseUnits(ctx)
	case model.Resources:
		err = c.syncResources(ctx)
	default:
		return 0, fmt.Errorf("unknown sync domain %d", int(d))
	}
	if err != nil {
		return 0, fmt.Errorf("sync %s: %w", d, err)
	}

	if err := c.ledger.MarkSynced(ctx, d, c.clock.Now()); err != nil {
		return 0, fmt.Errorf("mark synced %s: %w", d, err)
	}
	c.log.Info("sync completed", zap.Stringer("domain", d))
	return model.Synced, nil
}

// SyncAll syncs every domain sequentially in reference-data-first order.
// Domains fail independently; the joined error reports all failures.
func (c *Coordinator) SyncAll(ctx context.Context, force bool) (map[model.Domain]model.Outcome, error) {
	outcomes := make(map[model.Domain]model.Outcome, len(model.AllDomains))
	var errd []error
	for _, d := range model.AllDomains {
		out, err := c.Sync(ctx, d, force)
		if err != nil {
			c.log.Warn("domain sync failed", zap.Stringer("domain", d), zap.Error(err))
			errd = append(errd, err)
			continue
		}
		outcomes[d] = out
	}
	return outcomes, errors.Join(errd...)
}

func (c *Coordinator) syncFaculties(ctx context.Context) error {
	fs, err := c.api.ListFaculties(ctx)
	if err != nil {
		return err
	}
	return c.cache.ReplaceFaculties(ctx, fs)
}

// syncPrograms fans out per faculty. Individual faculty failures are logged
// and skipped; the sync fails only when no faculty could be fetched at all,
// so a single bad faculty never blocks the rest and a total outage never
// replaces good cached data with an empty set.
func (c *Coordinator) syncPrograms(ctx context.Context) error {
	ids, err := c.facultyIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		c.log.Info("no faculties known, skipping program fan-out")
		return nil
	}

	var (
		all    []model.Program
		failed int
	)
	for _, id := range ids {
		ps, err := c.api.ListPrograms(ctx, id)
		if err != nil {
			failed++
			c.log.Warn("programs fetch failed for faculty",
				zap.Stringer("faculty_id", id), zap.Error(err))
			continue
		}
		all = append(all, ps...)
	}
	if failed == len(ids) {
		return fmt.Errorf("all %d faculty program fetches failed", failed)
	}
	return c.cache.ReplacePrograms(ctx, all)
}

// facultyIDs prefers the cached faculty set as the fan-out source and falls
// back to the remote listing when the cache is empty (first run).
func (c *Coordinator) facultyIDs(ctx context.Context) ([]uuid.UUID, error) {
	cached, err := c.cache.ListFaculties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached faculties: %w", err)
	}
	if len(cached) > 0 {
		ids := make([]uuid.UUID, len(cached))
		for i, f := range cached {
			ids[i] = f.ID
		}
		return ids, nil
	}
	remote, err := c.api.ListFaculties(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(remote))
	for i, f := range remote {
		ids[i] = f.ID
	}
	return ids, nil
}

func (c *Coordinator) syncCourseUnits(ctx context.Context) error {
	cus, err := c.api.ListCourseUnits(ctx, model.CourseUnitFilter{})
	if err != nil {
		return err
	}
	return c.cache.ReplaceCourseUnits(ctx, cus)
}

// syncResources merges the first page of the recent and trending feeds,
// first occurrence winning, and upserts so existing bookmark flags survive.
func (c *Coordinator) syncResources(ctx context.Context) error {
	recent, err := c.api.ListRecentResources(ctx, 1, c.pageSize)
	if err != nil {
		return fmt.Errorf("recent: %w", err)
	}
	trending, err := c.api.ListTrendingResources(ctx, 1, c.pageSize)
	if err != nil {
		return fmt.Errorf("trending: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(recent.Items)+len(trending.Items))
	merged := make([]model.Resource, 0, len(recent.Items)+len(trending.Items))
	for _, r := range append(recent.Items, trending.Items...) {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}

	if err := c.cache.UpsertResources(ctx, merged); err != nil {
		return err
	}
	c.log.Debug("resources reconciled",
		zap.Int("recent", len(recent.Items)),
		zap.Int("trending", len(trending.Items)),
		zap.Int("upserted", len(merged)),
	)
	return nil
}
