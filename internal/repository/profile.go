package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
	"github.com/lib/pq"
)

const profileColumns = `id, email, full_name, age, gender, city, country, photo_urls,
	smoking, drinking, diet, prayer, religiosity, bio,
	marriage_timeline, want_children, willing_to_relocate,
	phone_verified, profile_verified, onboarding_completed, created_at, updated_at`

// PostgresProfileRepository implements profile row storage against a PostgreSQL database.
type PostgresProfileRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresProfileRepository creates a new PostgresProfileRepository using the provided *sql.DB.
func NewPostgresProfileRepository(db *sql.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{DB: db}
}

// CreateProfile inserts an empty profile row for the user if none exists yet.
// It is safe to call on every sign-in.
//
//	ctx:   context for cancellation and deadlines
//	id:    identifier of the owning user
//	email: login email copied onto the profile
func (s *PostgresProfileRepository) CreateProfile(ctx context.Context, id, email string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO profiles (id, email) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		id, email,
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfile fetches the profile row of the given user.
//
//	ctx: context for cancellation and deadlines
//	id:  identifier of the user
//
// Returns apperr.ErrNotFound if the row does not exist yet.
func (s *PostgresProfileRepository) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	var p models.Profile
	err := s.DB.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id,
	).Scan(
		&p.ID, &p.Email, &p.FullName, &p.Age, &p.Gender, &p.City, &p.Country, pq.Array(&p.PhotoURLs),
		&p.Smoking, &p.Drinking, &p.Diet, &p.Prayer, &p.Religiosity, &p.Bio,
		&p.MarriageTimeline, &p.WantChildren, &p.WillingToRelocate,
		&p.PhoneVerified, &p.ProfileVerified, &p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile writes only the columns present in upd; every other column
// keeps its stored value. onboarding_completed can only become TRUE.
//
//	ctx: context for cancellation and deadlines
//	id:  identifier of the user
//	upd: partial update to merge
//
// Returns apperr.ErrNotFound when no row matched.
func (s *PostgresProfileRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	query, args := buildUpdate(id, upd)
	if query == "" {
		return nil
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// buildUpdate renders the UPDATE statement for upd. It returns an empty query
// when upd carries no columns.
func buildUpdate(id string, upd models.ProfileUpdate) (string, []any) {
	cols := upd.Columns()
	if len(cols) == 0 {
		return "", nil
	}
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		if c.Name == models.FieldOnboardingCompleted {
			sets = append(sets, "onboarding_completed = TRUE")
			continue
		}
		v := c.Value
		if urls, ok := v.([]string); ok {
			v = pq.Array(urls)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Name, len(args)))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}
