package credstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

// Argon2id parameters for KEK derivation.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
	kekLen       uint32 = 32

	saltLen = 16
)

// EncryptedFile stores the credential pair as an AEAD-sealed JSON file.
// Fallback for hosts without a usable OS keychain. The file holds
// salt || nonce || ciphertext; the KEK is derived from the passphrase with
// a fresh salt on every save.
type EncryptedFile struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

var _ Store = (*EncryptedFile)(nil)

// NewEncryptedFile constructs a file-backed store sealed with passphrase.
func NewEncryptedFile(path string, passphrase []byte) (*EncryptedFile, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("empty credential passphrase")
	}
	return &EncryptedFile{path: path, passphrase: append([]byte(nil), passphrase...)}, nil
}

func deriveKEK(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, kekLen)
}

func (e *EncryptedFile) Tokens() (model.Tokens, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	blob, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Tokens{}, errs.ErrNoCredentials
	}
	if err != nil {
		return model.Tokens{}, err
	}
	if len(blob) < saltLen+chacha20poly1305.NonceSizeX {
		return model.Tokens{}, errors.New("credential file too short")
	}

	salt := blob[:saltLen]
	nonce := blob[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	ct := blob[saltLen+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(deriveKEK(e.passphrase, salt))
	if err != nil {
		return model.Tokens{}, err
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("unseal credentials: %w", err)
	}

	var rec tokenRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return model.Tokens{}, fmt.Errorf("decode stored tokens: %w", err)
	}
	return model.Tokens{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken, ExpiresAt: rec.ExpiresAt}, nil
}

func (e *EncryptedFile) Save(t model.Tokens) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	plain, err := json.Marshal(tokenRecord{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.ExpiresAt})
	if err != nil {
		return err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(deriveKEK(e.passphrase, salt))
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	blob := make([]byte, 0, saltLen+len(nonce)+len(plain)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, aead.Seal(nil, nonce, plain, nil)...)

	if err := os.MkdirAll(filepath.Dir(e.path), 0o700); err != nil {
		return err
	}
	// write-then-rename so a crash never leaves a torn credential file
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFile) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := os.Remove(e.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
