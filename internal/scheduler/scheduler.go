// Package scheduler decides when sync runs: periodic cadence, on-demand
// requests with per-domain collapse, and retry with exponential backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
	"github.com/tkarema/campuscache/internal/netmon"
)

// Syncer is the coordinator surface the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context, d model.Domain, force bool) (model.Outcome, error)
	SyncAll(ctx context.Context, force bool) (map[model.Domain]model.Outcome, error)
}

// Defaults for the periodic job and retry policy.
const (
	defaultPeriod      = 6 * time.Hour
	defaultFlex        = 2 * time.Hour
	defaultRetryBase   = 10 * time.Second // platform-minimum-style initial backoff
	defaultRetryCap    = 30 * time.Minute
	defaultMaxAttempts = 3 // one-shot: initial + 2 retries
)

// job is one enqueued sync request.
type job struct {
	domain model.Domain
	all    bool
}

// Scheduler owns a single worker goroutine; one-shot requests collapse
// per domain until the worker picks them up (most-recent-intent wins), and a
// request already in progress is never cancelled.
type Scheduler struct {
	coord Syncer
	mon   netmon.Monitor
	log   *zap.Logger
	clock clockwork.Clock

	period      time.Duration
	flex        time.Duration
	retryBase   time.Duration
	retryCap    time.Duration
	maxAttempts uint64

	mu         sync.Mutex
	pending    map[model.Domain]struct{}
	pendingAll bool
	wake       chan struct{}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithPeriod overrides the periodic cadence and its flex window.
func WithPeriod(period, flex time.Duration) Option {
	return func(s *Scheduler) { s.period, s.flex = period, flex }
}

// WithRetry overrides the one-shot retry policy.
func WithRetry(base, cap time.Duration, maxAttempts uint64) Option {
	return func(s *Scheduler) { s.retryBase, s.retryCap, s.maxAttempts = base, cap, maxAttempts }
}

// WithClock substitutes the time source (tests).
func WithClock(clk clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clk }
}

// New constructs a Scheduler. Call Run to start the worker.
func New(coord Syncer, mon netmon.Monitor, log *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		coord:       coord,
		mon:         mon,
		log:         log,
		clock:       clockwork.NewRealClock(),
		period:      defaultPeriod,
		flex:        defaultFlex,
		retryBase:   defaultRetryBase,
		retryCap:    defaultRetryCap,
		maxAttempts: defaultMaxAttempts,
		pending:     make(map[model.Domain]struct{}),
		wake:        make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RequestSync enqueues a one-shot sync for one domain. Offline requests are
// dropped immediately with a soft error so stale intents never accumulate.
// A pending request for the same domain is replaced, not duplicated.
func (s *Scheduler) RequestSync(d model.Domain) error {
	if !s.mon.Online() {
		s.log.Info("sync request dropped, offline", zap.Stringer("domain", d))
		return fmt.Errorf("%w: sync request dropped", errs.ErrUnreachable)
	}
	s.mu.Lock()
	s.pending[d] = struct{}{}
	s.mu.Unlock()
	s.poke()
	return nil
}

// RequestAll enqueues a one-shot full sync, collapsing with any pending one.
func (s *Scheduler) RequestAll() error {
	if !s.mon.Online() {
		s.log.Info("full sync request dropped, offline")
		return fmt.Errorf("%w: sync request dropped", errs.ErrUnreachable)
	}
	s.mu.Lock()
	s.pendingAll = true
	s.mu.Unlock()
	s.poke()
	return nil
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// take pops the next pending job; a pending full sync subsumes domain requests.
func (s *Scheduler) take() (job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingAll {
		s.pendingAll = false
		s.pending = make(map[model.Domain]struct{})
		return job{all: true}, true
	}
	for _, d := range model.AllDomains {
		if _, ok := s.pending[d]; ok {
			delete(s.pending, d)
			return job{domain: d}, true
		}
	}
	return job{}, false
}

// Run executes the worker loop until ctx is cancelled: one-shot requests as
// they arrive, the periodic full sync on cadence, and a catch-up run when
// connectivity returns after a periodic run was skipped offline.
func (s *Scheduler) Run(ctx context.Context) error {
	changes := s.mon.Subscribe()
	timer := s.clock.NewTimer(s.nextPeriod())
	defer timer.Stop()

	missedPeriodic := false
	periodicFails := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.Chan():
			if !s.mon.Online() {
				s.log.Info("periodic sync skipped, offline")
				missedPeriodic = true
				timer.Reset(s.nextPeriod())
				continue
			}
			if err := s.runPeriodic(ctx); err != nil {
				periodicFails++
				d := s.periodicBackoff(periodicFails)
				s.log.Warn("periodic sync failed, backing off",
					zap.Int("consecutive_failures", periodicFails),
					zap.Duration("retry_in", d),
					zap.Error(err))
				timer.Reset(d)
				continue
			}
			periodicFails = 0
			timer.Reset(s.nextPeriod())

		case st := <-changes:
			if st.Online && missedPeriodic {
				missedPeriodic = false
				if err := s.runPeriodic(ctx); err != nil {
					s.log.Warn("catch-up sync failed", zap.Error(err))
				}
			}

		case <-s.wake:
			for {
				j, ok := s.take()
				if !ok {
					break
				}
				s.runOneShot(ctx, j)
			}
		}
	}
}

// runPeriodic performs one full sync pass; per-domain failures are already
// aggregated by the coordinator.
func (s *Scheduler) runPeriodic(ctx context.Context) error {
	s.log.Info("periodic sync starting")
	_, err := s.coord.SyncAll(ctx, false)
	return err
}

// runOneShot executes a request with bounded retries. Only transient faults
// are retried; terminal rejections and credential failures stop immediately.
func (s *Scheduler) runOneShot(ctx context.Context, j job) {
	b := retry.WithMaxRetries(s.maxAttempts-1,
		retry.WithCappedDuration(s.retryCap,
			retry.WithJitterPercent(10, retry.NewExponential(s.retryBase))))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		if j.all {
			_, err = s.coord.SyncAll(ctx, false)
		} else {
			_, err = s.coord.Sync(ctx, j.domain, false)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, errs.ErrUnavailable) || errors.Is(err, errs.ErrUnreachable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if j.all {
			s.log.Warn("on-demand full sync failed", zap.Error(err))
		} else {
			s.log.Warn("on-demand sync failed", zap.Stringer("domain", j.domain), zap.Error(err))
		}
	}
}

// nextPeriod spreads periodic runs across the flex window: period ± flex/2.
func (s *Scheduler) nextPeriod() time.Duration {
	if s.flex <= 0 {
		return s.period
	}
	return s.period - s.flex/2 + time.Duration(rand.Int63n(int64(s.flex)))
}

// periodicBackoff grows exponentially with consecutive failures, capped.
func (s *Scheduler) periodicBackoff(fails int) time.Duration {
	d := s.retryBase
	for i := 1; i < fails; i++ {
		d *= 2
		if d >= s.retryCap {
			return s.retryCap
		}
	}
	if d > s.retryCap {
		return s.retryCap
	}
	return d
}
