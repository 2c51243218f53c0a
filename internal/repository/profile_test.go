package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
)

func setupProfileMock(t *testing.T) (*PostgresProfileRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresProfileRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

var profileRowColumns = []string{
	"id", "email", "full_name", "age", "gender", "city", "country", "photo_urls",
	"smoking", "drinking", "diet", "prayer", "religiosity", "bio",
	"marriage_timeline", "want_children", "willing_to_relocate",
	"phone_verified", "profile_verified", "onboarding_completed", "created_at", "updated_at",
}

func TestCreateProfile(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO profiles (id, email) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`)).
		WithArgs("u-1", "amina@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.CreateProfile(context.Background(), "u-1", "amina@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetProfile_Partial(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(profileRowColumns).AddRow(
		"u-1", "amina@example.com", "Amina", int64(27), nil, nil, nil, "{a.jpg,b.jpg}",
		"no", nil, nil, nil, nil, nil,
		nil, nil, true,
		false, false, false, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, full_name`)).
		WithArgs("u-1").
		WillReturnRows(rows)

	p, err := repo.GetProfile(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FullName == nil || *p.FullName != "Amina" {
		t.Errorf("full name = %v; want Amina", p.FullName)
	}
	if p.Age == nil || *p.Age != 27 {
		t.Errorf("age = %v; want 27", p.Age)
	}
	if p.Smoking == nil || *p.Smoking != models.SmokingNo {
		t.Errorf("smoking = %v; want no", p.Smoking)
	}
	if p.Gender != nil || p.Bio != nil || p.Drinking != nil {
		t.Errorf("expected unset fields to stay nil: %+v", p)
	}
	if p.WillingToRelocate == nil || !*p.WillingToRelocate {
		t.Errorf("willing_to_relocate = %v; want true", p.WillingToRelocate)
	}
	if len(p.PhotoURLs) != 2 || p.PhotoURLs[1] != "b.jpg" {
		t.Errorf("photo urls = %v", p.PhotoURLs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, full_name`)).
		WithArgs("u-404").
		WillReturnRows(sqlmock.NewRows(profileRowColumns))

	_, err := repo.GetProfile(context.Background(), "u-404")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfile_OnlySuppliedColumns(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET full_name = $1, age = $2, updated_at = now() WHERE id = $3`)).
		WithArgs("Amina", 27, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	upd := models.ProfileUpdate{FullName: models.Ptr("Amina"), Age: models.Ptr(27)}
	if err := repo.UpdateProfile(context.Background(), "u-1", upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateProfile_CompletionIsLiteralTrue(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET phone_verified = $1, onboarding_completed = TRUE, updated_at = now() WHERE id = $2`)).
		WithArgs(true, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	upd := models.ProfileUpdate{PhoneVerified: models.Ptr(true), CompleteOnboarding: true}
	if err := repo.UpdateProfile(context.Background(), "u-1", upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateProfile_NoRow(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET bio = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProfile(context.Background(), "u-404", models.ProfileUpdate{Bio: models.Ptr("hi")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfile_EmptyIsNoop(t *testing.T) {
	repo, mock, cleanup := setupProfileMock(t)
	defer cleanup()

	if err := repo.UpdateProfile(context.Background(), "u-1", models.ProfileUpdate{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected sql calls: %v", err)
	}
}

func TestBuildUpdate_PhotoArray(t *testing.T) {
	query, args := buildUpdate("u-1", models.ProfileUpdate{PhotoURLs: []string{"a.jpg"}})
	want := `UPDATE profiles SET photo_urls = $1, updated_at = now() WHERE id = $2`
	if query != want {
		t.Errorf("query = %q; want %q", query, want)
	}
	if len(args) != 2 || args[1] != "u-1" {
		t.Errorf("args = %v", args)
	}
}
