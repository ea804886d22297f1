// Package credstore persists the bearer credential pair in a secure store.
package credstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

// Store holds the access/refresh token pair. Implementations must be safe for
// concurrent use: the refresh gate reads and replaces tokens from multiple
// request goroutines.
type Store interface {
	// Tokens returns the stored pair; errs.ErrNoCredentials when absent.
	Tokens() (model.Tokens, error)
	// Save replaces the stored pair atomically.
	Save(t model.Tokens) error
	// Clear removes all stored credentials (forced logout).
	Clear() error
}

// AccessExpiry extracts the exp claim from an access token without verifying
// the signature. Client-side only; used for diagnostics and logging.
func AccessExpiry(accessToken string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// Memory is an in-memory Store for tests and ephemeral sessions.
type Memory struct {
	mu     sync.Mutex
	tokens model.Tokens
	set    bool
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Tokens() (model.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return model.Tokens{}, errs.ErrNoCredentials
	}
	return m.tokens, nil
}

func (m *Memory) Save(t model.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens, m.set = t, true
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens, m.set = model.Tokens{}, false
	return nil
}
