// Package onboarding drives a signed-in user through the onboarding chain,
// persisting each step's answers before moving on.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
)

// DefaultTimeout bounds each persist.
const DefaultTimeout = 15 * time.Second

// ErrNotSkippable is returned by Skip on a step that has required fields.
var ErrNotSkippable = errors.New("this step cannot be skipped")

// ProfileStore is the persistence the sequencer needs.
type ProfileStore interface {
	Fetch(ctx context.Context, userID string) (models.Profile, error)
	Update(ctx context.Context, userID string, upd models.ProfileUpdate) error
	Cached() (models.Profile, bool)
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// OnComplete registers fn to run once the chain reaches StepDone.
func OnComplete(fn func()) Option {
	return func(s *Sequencer) {
		s.onDone = fn
	}
}

// Sequencer is the onboarding state machine of one user. Only one
// submission may be in flight at a time.
type Sequencer struct {
	store   ProfileStore
	userID  string
	log     *zap.Logger
	timeout time.Duration
	onDone  func()

	mu       sync.Mutex
	current  models.StepName
	furthest models.StepName
	pending  bool
}

// New returns a sequencer positioned on the first step. Call Resume to
// continue where a previous run stopped.
func New(store ProfileStore, userID string, log *zap.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:    store,
		userID:   userID,
		log:      log.With(zap.String("user_id", userID)),
		timeout:  DefaultTimeout,
		current:  models.FirstStep,
		furthest: models.FirstStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resume positions the sequencer on the first step the stored profile does
// not satisfy. A missing profile row starts from the first step.
func (s *Sequencer) Resume(ctx context.Context) (models.StepName, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return "", apperr.ErrSubmissionPending
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	step := models.FirstStep
	p, err := s.store.Fetch(ctx, s.userID)
	switch {
	case err == nil:
		step = p.FirstUnsatisfied()
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return "", err
	}

	s.mu.Lock()
	s.current = step
	s.furthest = step
	s.mu.Unlock()
	s.log.Debug("onboarding resumed", zap.String("step", string(step)))
	return step, nil
}

// Current is the step the view shows.
func (s *Sequencer) Current() models.StepName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Furthest is the furthest step reached; Back never lowers it.
func (s *Sequencer) Furthest() models.StepName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.furthest
}

// Pending reports whether a submission is in flight.
func (s *Sequencer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Done reports whether onboarding is complete.
func (s *Sequencer) Done() bool {
	return s.Furthest() == models.StepDone
}

// Advance validates answers for the current step, persists them and moves to
// the next step. Invalid answers return a *apperr.ValidationError and reach
// no store. A failed persist leaves the state unchanged so the same answers
// can be resubmitted. On the terminal step the profile is also marked
// complete before the sequencer enters StepDone.
func (s *Sequencer) Advance(ctx context.Context, answers models.Answers) (models.StepName, error) {
	s.mu.Lock()
	switch {
	case s.pending:
		s.mu.Unlock()
		return "", apperr.ErrSubmissionPending
	case s.current == models.StepDone || s.furthest == models.StepDone:
		s.mu.Unlock()
		return "", apperr.ErrOnboardingDone
	case answers == nil || answers.Step() != s.current:
		cur := s.current
		s.mu.Unlock()
		return "", fmt.Errorf("%w: current step is %s", apperr.ErrStepMismatch, cur)
	}
	step, ok := models.LookupStep(s.current)
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("unknown step %q", s.current)
	}

	upd := answers.Update()
	if err := s.check(step, upd); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.pending = true
	s.mu.Unlock()

	err := s.persist(ctx, step, upd)

	s.mu.Lock()
	s.pending = false
	if err != nil {
		cur := s.current
		s.mu.Unlock()
		s.log.Warn("onboarding step not saved", zap.String("step", string(step.Name)), zap.Error(err))
		return cur, err
	}
	if rank(step.Next) > rank(s.furthest) {
		s.furthest = step.Next
	}
	// A back press during the persist keeps the cursor where the user put it,
	// except that completion always lands on StepDone.
	if s.current == step.Name || step.Next == models.StepDone {
		s.current = step.Next
	}
	cur := s.current
	s.mu.Unlock()

	s.log.Info("onboarding step saved", zap.String("step", string(step.Name)), zap.String("next", string(step.Next)))
	if step.Next == models.StepDone && s.onDone != nil {
		s.onDone()
	}
	return cur, nil
}

// Skip advances a skippable step without persisting anything.
func (s *Sequencer) Skip(ctx context.Context) (models.StepName, error) {
	cur := s.Current()
	step, ok := models.LookupStep(cur)
	if !ok {
		return "", apperr.ErrOnboardingDone
	}
	if !step.Skippable {
		return "", ErrNotSkippable
	}
	answers, _ := models.EmptyAnswers(cur)
	return s.Advance(ctx, answers)
}

// Back moves the view to the previous step. Stored answers are untouched and
// the furthest reached step is kept. It is a no-op on the first step and
// once onboarding is done.
func (s *Sequencer) Back() models.StepName {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == models.StepDone || s.furthest == models.StepDone {
		return s.current
	}
	if prev, ok := models.PreviousStep(s.current); ok {
		s.current = prev
	}
	return s.current
}

// check validates upd and, on steps with required fields, that the cached
// profile merged with upd satisfies them. Skippable steps accept empty answers.
func (s *Sequencer) check(step models.Step, upd models.ProfileUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}
	if step.Skippable {
		return nil
	}
	base, ok := s.store.Cached()
	if !ok || base.ID != s.userID {
		base = models.Profile{}
	}
	if missing := base.Apply(upd).Missing(step); len(missing) > 0 {
		return apperr.Invalid(string(missing[0]), "please answer %s", label(missing[0]))
	}
	return nil
}

func (s *Sequencer) persist(ctx context.Context, step models.Step, upd models.ProfileUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if !upd.IsEmpty() {
		if err := s.store.Update(ctx, s.userID, upd); err != nil {
			return err
		}
	}
	if step.Next == models.StepDone {
		if err := s.store.Update(ctx, s.userID, models.ProfileUpdate{CompleteOnboarding: true}); err != nil {
			return err
		}
	}
	return nil
}

// rank orders step names along the chain; StepDone ranks last.
func rank(n models.StepName) int {
	if n == models.StepDone {
		return len(models.Chain)
	}
	for i, st := range models.Chain {
		if st.Name == n {
			return i
		}
	}
	return -1
}

var labels = map[models.Field]string{
	models.FieldFullName:          "your full name",
	models.FieldAge:               "your age",
	models.FieldSmoking:           "the smoking question",
	models.FieldDrinking:          "the drinking question",
	models.FieldDiet:              "the diet question",
	models.FieldPrayer:            "the prayer question",
	models.FieldReligiosity:       "the religiosity question",
	models.FieldBio:               "the bio",
	models.FieldMarriageTimeline:  "the marriage timeline",
	models.FieldWantChildren:      "the children question",
	models.FieldWillingToRelocate: "the relocation question",
}

func label(f models.Field) string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}
