package service

import (
	"context"
	"fmt"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/metrics"
	"github.com/beitak/beitak/internal/models"
)

// ProfileRepository defines the profile persistence the profile service needs.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (models.Profile, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error
}

// ProfileService guards reads and partial writes of profiles.
type ProfileService struct {
	repo    ProfileRepository
	metrics *metrics.Metrics
}

func NewProfileService(repo ProfileRepository, m *metrics.Metrics) *ProfileService {
	return &ProfileService{repo: repo, metrics: m}
}

// Get returns the profile of id or apperr.ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, id string) (models.Profile, error) {
	return s.repo.GetProfile(ctx, id)
}

// Update validates upd and merges it into the stored profile. Marking
// onboarding complete requires every required field of the chain to be set
// once upd is applied; otherwise the update is rejected with apperr.ErrIncomplete.
func (s *ProfileService) Update(ctx context.Context, id string, upd models.ProfileUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}
	if upd.IsEmpty() {
		return nil
	}

	newlyCompleted := false
	if upd.CompleteOnboarding {
		cur, err := s.repo.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		if missing := cur.Apply(upd).MissingForCompletion(); len(missing) > 0 {
			return fmt.Errorf("%w: missing %v", apperr.ErrIncomplete, missing)
		}
		newlyCompleted = !cur.OnboardingCompleted
	}

	if err := s.repo.UpdateProfile(ctx, id, upd); err != nil {
		return err
	}
	s.metrics.ProfileUpdates.Inc()
	if newlyCompleted {
		s.metrics.OnboardingCompletes.Inc()
	}
	return nil
}
