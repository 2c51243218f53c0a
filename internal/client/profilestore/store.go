// Package profilestore is the client's adapter to the profiles API. It is
// the only writer of the locally cached profile.
package profilestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
)

// DefaultTimeout bounds every call to the server.
const DefaultTimeout = 15 * time.Second

// Doer sends HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token of the signed-in user.
type TokenSource interface {
	AccessToken() string
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Store fetches and updates profiles and keeps the last fetched one cached.
type Store struct {
	client  Doer
	baseURL string
	tokens  TokenSource
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	cached *models.Profile
}

func New(client Doer, baseURL string, tokens TokenSource, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the profile of userID. A missing row yields apperr.ErrNotFound,
// which is expected right after the first sign-in. Transport and server
// failures come back as *apperr.StoreError.
func (s *Store) Fetch(ctx context.Context, userID string) (models.Profile, error) {
	const op = "fetch profile"
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodGet, userID, nil)
	if err != nil {
		return models.Profile{}, &apperr.StoreError{Op: op, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return models.Profile{}, transportError(op, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return models.Profile{}, fmt.Errorf("%s %s: %w", op, userID, apperr.ErrNotFound)
	default:
		return models.Profile{}, statusError(op, resp)
	}

	var p models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return models.Profile{}, &apperr.StoreError{Op: op, Err: fmt.Errorf("decode profile: %w", err), Retryable: true}
	}

	s.mu.Lock()
	s.cached = &p
	s.mu.Unlock()
	s.log.Debug("profile fetched", zap.String("user_id", userID), zap.Bool("onboarding_completed", p.OnboardingCompleted))
	return p, nil
}

// Update writes the fields present in upd and leaves every other field as
// stored. On success the cached profile of userID is merged with exactly the
// supplied fields. An update with no fields is a no-op.
func (s *Store) Update(ctx context.Context, userID string, upd models.ProfileUpdate) error {
	const op = "update profile"
	if err := upd.Validate(); err != nil {
		return err
	}
	if upd.IsEmpty() {
		return nil
	}

	body, err := json.Marshal(upd)
	if err != nil {
		return &apperr.StoreError{Op: op, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodPatch, userID, bytes.NewReader(body))
	if err != nil {
		return &apperr.StoreError{Op: op, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}

	s.mu.Lock()
	if s.cached != nil && s.cached.ID == userID {
		merged := s.cached.Apply(upd)
		s.cached = &merged
	}
	s.mu.Unlock()
	return nil
}

// Cached returns the last fetched profile, merged with later updates.
func (s *Store) Cached() (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return models.Profile{}, false
	}
	return *s.cached, true
}

// Invalidate drops the cached profile, for example on sign-out.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *Store) newRequest(ctx context.Context, method, userID string, body io.Reader) (*http.Request, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/api/profiles/"+url.PathEscape(userID), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := s.tokens.AccessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// transportError wraps a failed round trip. Network errors and timeouts are
// worth retrying; a cancelled context is not.
func transportError(op string, err error) error {
	return &apperr.StoreError{Op: op, Err: err, Retryable: !errors.Is(err, context.Canceled)}
}

// statusError maps an unexpected status to the error kinds of apperr.
func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch resp.StatusCode {
	case http.StatusBadRequest:
		var ve apperr.ValidationError
		if err := json.Unmarshal(raw, &ve); err == nil && ve.Message != "" {
			return &ve
		}
		return &apperr.StoreError{Op: op, Err: fmt.Errorf("bad request: %s", serverMessage(raw))}
	case http.StatusUnauthorized:
		return &apperr.StoreError{Op: op, Err: apperr.ErrUnauthorized}
	case http.StatusForbidden:
		return &apperr.StoreError{Op: op, Err: apperr.ErrForbidden}
	case http.StatusNotFound:
		return &apperr.StoreError{Op: op, Err: apperr.ErrNotFound}
	case http.StatusConflict:
		return &apperr.StoreError{Op: op, Err: fmt.Errorf("%w: %s", apperr.ErrIncomplete, serverMessage(raw))}
	}
	return &apperr.StoreError{
		Op:        op,
		Err:       fmt.Errorf("server responded %d: %s", resp.StatusCode, serverMessage(raw)),
		Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}

func serverMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
