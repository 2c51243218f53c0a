package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beitak/beitak/internal/models"
)

func TestTokenStore_LoadMissing(t *testing.T) {
	s := NewTokenStore(filepath.Join(t.TempDir(), "session.json"))

	_, ok, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("expected no stored token")
	}
}

func TestTokenStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewTokenStore(path)
	want := models.AuthToken{AccessToken: "tok", UserID: "u-1", ExpiresAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file permissions = %o; want 600", perm)
	}

	got, ok, err := s.Load()
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.AccessToken != want.AccessToken || got.UserID != want.UserID || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("Load = %+v; want %+v", got, want)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := s.Load(); ok {
		t.Error("expected token to be gone after Clear")
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear should be a no-op, got %v", err)
	}
}

func TestTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewTokenStore(path).Load(); err == nil {
		t.Error("expected decode error")
	}
}
