package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

const keyringUser = "tokens"

// Keyring stores the credential pair as a single JSON secret in the OS keychain.
type Keyring struct {
	service string
	mu      sync.Mutex
}

var _ Store = (*Keyring)(nil)

// NewKeyring constructs a keychain-backed store under the given service name.
func NewKeyring(service string) *Keyring { return &Keyring{service: service} }

// Available probes whether an OS keychain backend is usable.
func (k *Keyring) Available() bool {
	err := keyring.Set(k.service, "probe", "1")
	if err != nil {
		return false
	}
	_ = keyring.Delete(k.service, "probe")
	return true
}

type tokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

func (k *Keyring) Tokens() (model.Tokens, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	raw, err := keyring.Get(k.service, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return model.Tokens{}, errs.ErrNoCredentials
	}
	if err != nil {
		return model.Tokens{}, fmt.Errorf("keyring get: %w", err)
	}
	var rec tokenRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.Tokens{}, fmt.Errorf("decode stored tokens: %w", err)
	}
	return model.Tokens{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken, ExpiresAt: rec.ExpiresAt}, nil
}

func (k *Keyring) Save(t model.Tokens) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	raw, err := json.Marshal(tokenRecord{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.ExpiresAt})
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, keyringUser, string(raw)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (k *Keyring) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	err := keyring.Delete(k.service, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}
