package authgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/credstore"
	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	tokens model.Tokens
	err    error
	delay  time.Duration
}

func (f *fakeRefresher) RefreshToken(_ context.Context, refreshToken string) (model.Tokens, error) {
	f.mu.Lock()
	f.calls++
	delay, tokens, err := f.delay, f.tokens, f.err
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return model.Tokens{}, err
	}
	return tokens, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newAuthServer accepts only the given bearer token.
func newAuthServer(t *testing.T, accept string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+accept {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestGate_AttachesBearerAndPassesThrough(t *testing.T) {
	t.Parallel()
	srv, _ := newAuthServer(t, "tok")

	creds := credstore.NewMemory()
	if err := creds.Save(model.Tokens{AccessToken: "tok", RefreshToken: "r"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{}
	cli := &http.Client{Transport: New(nil, creds, ref, zap.NewNop())}

	resp, err := cli.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if ref.callCount() != 0 {
		t.Fatalf("no refresh expected, got %d calls", ref.callCount())
	}
}

func TestGate_SingleFlightRefresh(t *testing.T) {
	t.Parallel()
	srv, _ := newAuthServer(t, "new")

	creds := credstore.NewMemory()
	if err := creds.Save(model.Tokens{AccessToken: "old", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{
		tokens: model.Tokens{AccessToken: "new", RefreshToken: "r2"},
		delay:  50 * time.Millisecond, // force the burst to overlap the refresh
	}
	cli := &http.Client{Transport: New(nil, creds, ref, zap.NewNop())}

	const n = 5
	var wg sync.WaitGroup
	codes := make([]int, n)
	errsCh := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := cli.Get(srv.URL)
			if err != nil {
				errsCh[i] = err
				return
			}
			defer resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errsCh[i] != nil {
			t.Fatalf("request %d: %v", i, errsCh[i])
		}
		if codes[i] != http.StatusOK {
			t.Fatalf("request %d: want 200, got %d", i, codes[i])
		}
	}
	if got := ref.callCount(); got != 1 {
		t.Fatalf("burst of %d concurrent 401s must trigger exactly 1 refresh, got %d", n, got)
	}
	toks, err := creds.Tokens()
	if err != nil || toks.RefreshToken != "r2" {
		t.Fatalf("rotated refresh token must be stored, got %+v err=%v", toks, err)
	}
}

func TestGate_RefreshLoopTerminates(t *testing.T) {
	t.Parallel()
	// server rejects everything: even the refreshed token fails authorization
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	creds := credstore.NewMemory()
	if err := creds.Save(model.Tokens{AccessToken: "old", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{tokens: model.Tokens{AccessToken: "new", RefreshToken: "r2"}}
	cli := &http.Client{Transport: New(nil, creds, ref, zap.NewNop())}

	resp, err := cli.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("second 401 in a row must surface, got %d", resp.StatusCode)
	}
	if got := ref.callCount(); got != 1 {
		t.Fatalf("no second refresh after a retried request fails again, got %d", got)
	}
}

func TestGate_NoRefreshTokenGivesUpImmediately(t *testing.T) {
	t.Parallel()
	srv, _ := newAuthServer(t, "whatever")

	creds := credstore.NewMemory() // empty
	ref := &fakeRefresher{}
	cli := &http.Client{Transport: New(nil, creds, ref, zap.NewNop())}

	resp, err := cli.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
	if ref.callCount() != 0 {
		t.Fatalf("no refresh without a refresh token")
	}
}

func TestGate_RejectedRefreshClearsCredentials(t *testing.T) {
	t.Parallel()
	srv, _ := newAuthServer(t, "never")

	creds := credstore.NewMemory()
	if err := creds.Save(model.Tokens{AccessToken: "old", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{err: fmt.Errorf("%w: /auth/refresh", errs.ErrUnauthorized)}
	cli := &http.Client{Transport: New(nil, creds, ref, zap.NewNop())}

	resp, err := cli.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
	if _, err := creds.Tokens(); !errors.Is(err, errs.ErrNoCredentials) {
		t.Fatalf("rejected refresh must clear credentials, got %v", err)
	}
}

func TestGate_TransientRefreshFailureAlsoForcesLogout(t *testing.T) {
	t.Parallel()
	srv, _ := newAuthServer(t, "never")

	creds := credstore.NewMemory()
	if err := creds.Save(model.Tokens{AccessToken: "old", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{err: fmt.Errorf("%w: connect", errs.ErrUnreachable)}
	cli := &http.Client{Transport: New(nil, creds, ref, zap.NewNop())}

	resp, err := cli.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("original 401 must surface, got %d", resp.StatusCode)
	}
	if _, err := creds.Tokens(); !errors.Is(err, errs.ErrNoCredentials) {
		t.Fatalf("any failed refresh must clear credentials, got %v", err)
	}
}

func TestRefresh_ConcurrentRefreshDetected(t *testing.T) {
	t.Parallel()
	creds := credstore.NewMemory()
	// another goroutine already rotated the pair
	if err := creds.Save(model.Tokens{AccessToken: "new", RefreshToken: "r2"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{}
	g := New(nil, creds, ref, zap.NewNop())

	// the failing request used "old"; the stored token differs, so no call
	if err := g.refresh(context.Background(), "old"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ref.callCount() != 0 {
		t.Fatalf("stored token changed concurrently: no network refresh expected")
	}
}

func TestRefresh_WaiterTimesOut(t *testing.T) {
	t.Parallel()
	creds := credstore.NewMemory()
	if err := creds.Save(model.Tokens{AccessToken: "old", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ref := &fakeRefresher{
		tokens: model.Tokens{AccessToken: "new", RefreshToken: "r2"},
		delay:  500 * time.Millisecond,
	}
	g := New(nil, creds, ref, zap.NewNop(), WithWaitTimeout(20*time.Millisecond))

	started := make(chan struct{})
	go func() {
		close(started)
		_ = g.refresh(context.Background(), "old")
	}()
	<-started
	time.Sleep(10 * time.Millisecond) // let the refresher claim the in-flight slot

	err := g.refresh(context.Background(), "old")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want bounded-wait timeout mapped to unauthorized, got %v", err)
	}
}
