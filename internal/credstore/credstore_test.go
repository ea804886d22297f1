package credstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

func issueAccessToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "student",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)

	got, err := AccessExpiry(issueAccessToken(t, exp))
	if err != nil {
		t.Fatalf("AccessExpiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("exp = %v, want %v", got, exp)
	}
}

func TestAccessExpiry_RejectsGarbage(t *testing.T) {
	if _, err := AccessExpiry("not-a-jwt"); err == nil {
		t.Fatal("want error for malformed token")
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory()

	if _, err := m.Tokens(); !errors.Is(err, errs.ErrNoCredentials) {
		t.Fatalf("empty store: got %v, want ErrNoCredentials", err)
	}

	want := model.Tokens{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := m.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := m.Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := m.Tokens(); !errors.Is(err, errs.ErrNoCredentials) {
		t.Fatalf("after clear: got %v, want ErrNoCredentials", err)
	}
}

func TestEncryptedFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")
	s, err := NewEncryptedFile(path, []byte("correct horse"))
	if err != nil {
		t.Fatalf("NewEncryptedFile: %v", err)
	}

	if _, err := s.Tokens(); !errors.Is(err, errs.ErrNoCredentials) {
		t.Fatalf("missing file: got %v, want ErrNoCredentials", err)
	}

	want := model.Tokens{
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// a fresh store instance must read what the first one wrote
	s2, err := NewEncryptedFile(path, []byte("correct horse"))
	if err != nil {
		t.Fatalf("NewEncryptedFile: %v", err)
	}
	got, err := s2.Tokens()
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestEncryptedFile_WrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")
	s, err := NewEncryptedFile(path, []byte("right"))
	if err != nil {
		t.Fatalf("NewEncryptedFile: %v", err)
	}
	if err := s.Save(model.Tokens{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	wrong, err := NewEncryptedFile(path, []byte("wrong"))
	if err != nil {
		t.Fatalf("NewEncryptedFile: %v", err)
	}
	if _, err := wrong.Tokens(); err == nil {
		t.Fatal("wrong passphrase must not unseal the credential file")
	}
}

func TestEncryptedFile_EmptyPassphraseRejected(t *testing.T) {
	if _, err := NewEncryptedFile("x", nil); err == nil {
		t.Fatal("want error for empty passphrase")
	}
}

func TestEncryptedFile_ClearIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")
	s, err := NewEncryptedFile(path, []byte("p"))
	if err != nil {
		t.Fatalf("NewEncryptedFile: %v", err)
	}
	if err := s.Save(model.Tokens{AccessToken: "a1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := s.Tokens(); !errors.Is(err, errs.ErrNoCredentials) {
		t.Fatalf("after clear: got %v, want ErrNoCredentials", err)
	}
}
