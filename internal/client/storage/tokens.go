// Package storage keeps the client's local state: the persisted session
// token and the HTTP transport used to reach the API.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/beitak/beitak/internal/models"
)

// TokenStore persists the current session token in a JSON file so that a
// restarted client resumes the session.
type TokenStore struct {
	path string
	mu   sync.Mutex
}

// NewTokenStore returns a store backed by path. The file is created lazily.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load returns the stored token. ok is false when nothing has been saved yet.
func (s *TokenStore) Load() (tok models.AuthToken, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.AuthToken{}, false, nil
	}
	if err != nil {
		return models.AuthToken{}, false, fmt.Errorf("read token file: %w", err)
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return models.AuthToken{}, false, fmt.Errorf("decode token file: %w", err)
	}
	return tok, tok.AccessToken != "", nil
}

// Save replaces the stored token. The write goes through a temp file so a
// crash never leaves a truncated file behind.
func (s *TokenStore) Save(tok models.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Clear forgets the stored token.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
