package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
)

// Source is the auth collaborator as seen by the gate: a current snapshot
// and a stream of changes.
type Source interface {
	Current(ctx context.Context) (Session, error)
	// Subscribe returns a channel of session changes and a func that ends the
	// subscription and closes the channel.
	Subscribe() (<-chan Session, func())
}

// ProfileFetcher reads the profile of an authenticated user.
type ProfileFetcher interface {
	Fetch(ctx context.Context, userID string) (models.Profile, error)
}

// Navigator switches the view to another route group.
type Navigator interface {
	Navigate(group RouteGroup)
}

// Notifier shows an error to the user as a dismissible alert.
type Notifier interface {
	Notify(err error)
}

// Snapshot is a consistent copy of the gate's state.
type Snapshot struct {
	Session   Session
	Onboarded bool
	Group     RouteGroup
	Decision  Decision
}

// Gate applies Evaluate to every session change and redirects through the
// Navigator. Session events are processed one at a time in arrival order.
type Gate struct {
	source   Source
	profiles ProfileFetcher
	nav      Navigator
	notify   Notifier
	log      *zap.Logger

	mu        sync.Mutex
	session   Session
	onboarded bool
	group     RouteGroup
}

// NewGate returns a gate in the Unknown state on the root group.
func NewGate(source Source, profiles ProfileFetcher, nav Navigator, notify Notifier, log *zap.Logger) *Gate {
	return &Gate{
		source:   source,
		profiles: profiles,
		nav:      nav,
		notify:   notify,
		log:      log,
		session:  Unknown(),
		group:    GroupRoot,
	}
}

// Start resolves the initial session. A failed lookup is reported to the
// user and the gate fails closed to Unauthenticated; the lookup error is
// returned for the caller's logs.
func (g *Gate) Start(ctx context.Context) error {
	s, err := g.source.Current(ctx)
	if err != nil {
		err = &apperr.AuthError{Op: "session lookup", Err: err}
		g.log.Warn("session lookup failed, continuing signed out", zap.Error(err))
		g.notify.Notify(err)
		s = Unauthenticated()
	}
	g.apply(ctx, s)
	return err
}

// Run subscribes to session changes, resolves the initial session and then
// applies every change until ctx is done or the subscription closes.
func (g *Gate) Run(ctx context.Context) error {
	events, cancel := g.source.Subscribe()
	defer cancel()

	_ = g.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-events:
			if !ok {
				return nil
			}
			g.apply(ctx, s)
		}
	}
}

// Enter records that the view is now showing group and returns the
// decision for it, redirecting when the group is not allowed.
func (g *Gate) Enter(group RouteGroup) Decision {
	g.mu.Lock()
	g.group = group
	g.mu.Unlock()
	return g.reevaluate()
}

// MarkOnboarded records that onboarding finished for the current user.
// Completion is monotonic: nothing in the gate resets it for the same user.
func (g *Gate) MarkOnboarded() Decision {
	g.mu.Lock()
	if g.session.IsAuthenticated() {
		g.onboarded = true
	}
	g.mu.Unlock()
	return g.reevaluate()
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Session:   g.session,
		Onboarded: g.onboarded,
		Group:     g.group,
		Decision:  Evaluate(g.session, g.onboarded, g.group),
	}
}

func (g *Gate) apply(ctx context.Context, s Session) {
	if !s.Valid() {
		g.log.Warn("dropping invalid session", zap.Stringer("status", s.Status))
		s = Unauthenticated()
	}

	g.mu.Lock()
	prev, wasOnboarded := g.session, g.onboarded
	g.mu.Unlock()

	onboarded := false
	if s.IsAuthenticated() {
		if prev.IsAuthenticated() && prev.UserID == s.UserID && wasOnboarded {
			onboarded = true
		} else {
			onboarded = g.fetchOnboarded(ctx, s.UserID)
		}
	}

	g.mu.Lock()
	// MarkOnboarded may have landed for this user while the profile was fetched.
	if s.IsAuthenticated() && g.session.IsAuthenticated() && g.session.UserID == s.UserID && g.onboarded {
		onboarded = true
	}
	g.session = s
	g.onboarded = onboarded
	g.mu.Unlock()

	g.log.Debug("session changed",
		zap.Stringer("status", s.Status),
		zap.String("user_id", s.UserID),
		zap.Bool("onboarded", onboarded),
	)
	g.reevaluate()
}

// fetchOnboarded learns the completion flag. A missing profile row is the
// first-login race and means not onboarded; store failures are shown and
// also count as not onboarded.
func (g *Gate) fetchOnboarded(ctx context.Context, userID string) bool {
	p, err := g.profiles.Fetch(ctx, userID)
	switch {
	case err == nil:
		return p.OnboardingCompleted
	case errors.Is(err, apperr.ErrNotFound):
		return false
	default:
		g.log.Warn("profile fetch failed", zap.String("user_id", userID), zap.Error(err))
		g.notify.Notify(err)
		return false
	}
}

func (g *Gate) reevaluate() Decision {
	g.mu.Lock()
	d := Evaluate(g.session, g.onboarded, g.group)
	if d.Redirects() {
		g.group = d.RedirectTo
	}
	g.mu.Unlock()

	if d.Redirects() {
		g.nav.Navigate(d.RedirectTo)
	}
	return d
}
