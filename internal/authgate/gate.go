// Package authgate attaches bearer credentials to outbound requests and
// performs single-flight token refresh on authorization failures.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/catalog"
	"github.com/tkarema/campuscache/internal/credstore"
	"github.com/tkarema/campuscache/internal/errs"
)

// maxAuthAttempts bounds authorization retries per request: the original
// attempt plus one retry with a freshly refreshed token. A second 401 in a
// row means the new token is rejected too; refreshing again would loop.
const maxAuthAttempts = 2

// defaultWaitTimeout bounds how long a late arrival waits for a refresh
// already in flight before failing its own request.
const defaultWaitTimeout = 5 * time.Second

// refreshOp is one refresh cycle. Waiters block on done and read err after
// the wake; a nil err means new tokens are stored.
type refreshOp struct {
	done chan struct{}
	err  error
}

// Gate is an http.RoundTripper that injects the stored access token and
// resolves 401 responses through a shared, single-flight refresh cycle.
type Gate struct {
	base        http.RoundTripper
	creds       credstore.Store
	refresher   catalog.Refresher
	log         *zap.Logger
	waitTimeout time.Duration

	mu sync.Mutex
	op *refreshOp // non-nil while a refresh is in flight
}

// New constructs a Gate in front of base. The refresher must bypass this gate,
// otherwise a failing refresh call would recurse into itself.
func New(base http.RoundTripper, creds credstore.Store, refresher catalog.Refresher, log *zap.Logger, opts ...Option) *Gate {
	if base == nil {
		base = http.DefaultTransport
	}
	g := &Gate{base: base, creds: creds, refresher: refresher, log: log, waitTimeout: defaultWaitTimeout}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Option customizes a Gate.
type Option func(*Gate)

// WithWaitTimeout overrides how long late arrivals wait for an in-flight refresh.
func WithWaitTimeout(d time.Duration) Option {
	return func(g *Gate) { g.waitTimeout = d }
}

// RoundTrip attaches the current access token and retries once after a
// successful refresh. The final 401 is returned to the caller untouched so
// the catalog client can map it into the error taxonomy.
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; attempt < maxAuthAttempts; attempt++ {
		access := ""
		if tok, err := g.creds.Tokens(); err == nil {
			access = tok.AccessToken
		}

		r := req.Clone(req.Context())
		if access != "" {
			r.Header.Set("Authorization", "Bearer "+access)
		}
		if attempt > 0 && req.Body != nil {
			if req.GetBody == nil {
				return resp, nil // cannot replay the body; surface the 401
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		var err error
		resp, err = g.base.RoundTrip(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized || attempt == maxAuthAttempts-1 {
			return resp, nil
		}

		if rerr := g.refresh(req.Context(), access); rerr != nil {
			g.log.Warn("token refresh failed", zap.Error(rerr))
			// hand the original 401 back untouched
			return resp, nil
		}
		// retrying with the refreshed token; release the stale response
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		_ = resp.Body.Close()
	}
	return resp, nil
}

// refresh brings the stored access token up to date. Exactly one caller per
// burst performs the network call; the rest either reuse a token refreshed
// concurrently or wait (bounded) for the in-flight cycle.
func (g *Gate) refresh(ctx context.Context, staleAccess string) error {
	for {
		g.mu.Lock()

		// Another goroutine may have refreshed while this request was failing:
		// if the stored token no longer matches the one the request used,
		// retry with the current token, no network call needed.
		cur, terr := g.creds.Tokens()
		if terr == nil && cur.AccessToken != "" && cur.AccessToken != staleAccess {
			g.mu.Unlock()
			return nil
		}

		if op := g.op; op != nil {
			g.mu.Unlock()
			select {
			case <-op.done:
				if op.err != nil {
					return op.err
				}
				continue // re-check the stored token
			case <-time.After(g.waitTimeout):
				return fmt.Errorf("%w: timed out waiting for token refresh", errs.ErrUnauthorized)
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if terr != nil || cur.RefreshToken == "" {
			// no refresh token: the user must re-authenticate
			g.mu.Unlock()
			return errs.ErrNoCredentials
		}

		op := &refreshOp{done: make(chan struct{})}
		g.op = op
		g.mu.Unlock()

		op.err = g.doRefresh(ctx, cur.RefreshToken)

		g.mu.Lock()
		g.op = nil
		close(op.done)
		g.mu.Unlock()
		return op.err
	}
}

// doRefresh performs the network call and updates the credential store.
// Any refresh failure clears all credentials (forced logout): subsequent
// requests go out unauthenticated and the UI must force a re-login.
func (g *Gate) doRefresh(ctx context.Context, refreshToken string) error {
	toks, err := g.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		g.log.Warn("token refresh failed, clearing credentials", zap.Error(err))
		if cerr := g.creds.Clear(); cerr != nil {
			g.log.Error("clear credentials", zap.Error(cerr))
		}
		if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrRejected) {
			return fmt.Errorf("%w: refresh token rejected", errs.ErrNoCredentials)
		}
		return fmt.Errorf("refresh call: %w", err)
	}
	if err := g.creds.Save(toks); err != nil {
		return fmt.Errorf("store refreshed tokens: %w", err)
	}
	if exp, err := credstore.AccessExpiry(toks.AccessToken); err == nil {
		g.log.Info("access token refreshed", zap.Time("expires_at", exp))
	} else {
		g.log.Info("access token refreshed")
	}
	return nil
}
