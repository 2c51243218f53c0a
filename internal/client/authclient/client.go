// Package authclient talks to the auth endpoints of the API and owns the
// client's session: it persists the token, answers snapshot queries and
// broadcasts every session change to subscribers in order.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/client/session"
	"github.com/beitak/beitak/internal/models"
)

// DefaultTimeout bounds every call to the server.
const DefaultTimeout = 15 * time.Second

// Doer sends HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (models.AuthToken, bool, error)
	Save(tok models.AuthToken) error
	Clear() error
}

type subscriber struct {
	ch   chan session.Session
	done chan struct{}
}

// Client is the auth collaborator of the session gate.
type Client struct {
	http    Doer
	baseURL string
	store   TokenStore
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	// publishMu serialises session changes so subscribers see them in order.
	publishMu sync.Mutex

	mu      sync.Mutex
	current session.Session
	loaded  bool
	subs    map[int]*subscriber
	nextSub int
}

func New(httpClient Doer, baseURL string, store TokenStore, log *zap.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		log:     log,
		timeout: DefaultTimeout,
		now:     time.Now,
		current: session.Unknown(),
		subs:    make(map[int]*subscriber),
	}
}

// Current returns the session snapshot. The first call restores the stored
// token and confirms it with the server; a rejected or expired token is
// forgotten. A failed lookup is returned as an error and nothing is cached,
// so the caller decides how to fail.
func (c *Client) Current(ctx context.Context) (session.Session, error) {
	c.mu.Lock()
	if c.loaded {
		s := c.current
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	tok, ok, err := c.store.Load()
	if err != nil {
		return session.Session{}, &apperr.AuthError{Op: "restore session", Err: err}
	}
	if !ok || (!tok.ExpiresAt.IsZero() && !c.now().Before(tok.ExpiresAt)) {
		if ok {
			c.log.Info("stored session expired")
			_ = c.store.Clear()
		}
		s := session.Unauthenticated()
		c.setLoaded(s)
		return s, nil
	}

	info, err := c.fetchSession(ctx, tok.AccessToken)
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		c.log.Info("stored session rejected by server")
		_ = c.store.Clear()
		s := session.Unauthenticated()
		c.setLoaded(s)
		return s, nil
	case err != nil:
		return session.Session{}, err
	}

	s, err := session.Authenticated(info.UserID, tok.AccessToken, info.ExpiresAt)
	if err != nil {
		return session.Session{}, &apperr.AuthError{Op: "restore session", Err: err}
	}
	c.setLoaded(s)
	return s, nil
}

// AccessToken returns the bearer token of the current session, if any.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.AccessToken
}

// Subscribe registers for session changes. The returned func ends the
// subscription and closes the channel; it is safe to call more than once.
func (c *Client) Subscribe() (<-chan session.Session, func()) {
	sub := &subscriber{ch: make(chan session.Session, 8), done: make(chan struct{})}

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			close(sub.done)
			c.publishMu.Lock()
			defer c.publishMu.Unlock()
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (c *Client) setLoaded(s session.Session) {
	c.mu.Lock()
	c.current = s
	c.loaded = true
	c.mu.Unlock()
}

// publish records s as current and delivers it to every subscriber.
func (c *Client) publish(s session.Session) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.current = s
	c.loaded = true
	subs := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- s:
		case <-sub.done:
		}
	}
}

// signedIn stores tok and announces the new session.
func (c *Client) signedIn(op string, tok models.AuthToken) error {
	s, err := session.Authenticated(tok.UserID, tok.AccessToken, tok.ExpiresAt)
	if err != nil {
		return &apperr.AuthError{Op: op, Err: err}
	}
	if err := c.store.Save(tok); err != nil {
		c.log.Warn("failed to persist session token", zap.Error(err))
	}
	c.log.Info("signed in", zap.String("user_id", tok.UserID))
	c.publish(s)
	return nil
}

// signedOut forgets the token and announces the signed-out session.
func (c *Client) signedOut(reason string) {
	if err := c.store.Clear(); err != nil {
		c.log.Warn("failed to clear session token", zap.Error(err))
	}
	c.log.Info("signed out", zap.String("reason", reason))
	c.publish(session.Unauthenticated())
}

type sessionInfo struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Client) fetchSession(ctx context.Context, token string) (sessionInfo, error) {
	var info sessionInfo
	err := c.call(ctx, "session lookup", http.MethodGet, "/api/auth/session", token, nil, &info)
	return info, err
}

// call performs one JSON request. Failures come back as *apperr.AuthError,
// except field-level rejections which stay *apperr.ValidationError.
func (c *Client) call(ctx context.Context, op, method, path, token string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &apperr.AuthError{Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &apperr.AuthError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &apperr.AuthError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.AuthError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var body struct {
		Field string `json:"field"`
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if body.Field != "" {
			return apperr.Invalid(body.Field, "%s", msg)
		}
		return &apperr.AuthError{Op: op, Err: errors.New(msg)}
	case http.StatusUnauthorized:
		return &apperr.AuthError{Op: op, Err: fmt.Errorf("%w: %s", apperr.ErrUnauthorized, msg)}
	case http.StatusConflict:
		return &apperr.AuthError{Op: op, Err: fmt.Errorf("%w: %s", apperr.ErrConflict, msg)}
	case http.StatusTooManyRequests:
		return &apperr.AuthError{Op: op, Err: errors.New(msg)}
	}
	return &apperr.AuthError{Op: op, Err: fmt.Errorf("server responded %d: %s", resp.StatusCode, msg)}
}
