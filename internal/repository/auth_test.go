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
	"github.com/lib/pq"
)

func setupAuthMock(t *testing.T) (*PostgresAuthRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresAuthRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestCreateUser_Success(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`)).
		WithArgs(sqlmock.AnyArg(), "amina@example.com", []byte("hash")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	u, err := repo.CreateUser(context.Background(), "amina@example.com", []byte("hash"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == "" || u.Email != "amina@example.com" || !u.CreatedAt.Equal(created) {
		t.Errorf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateUser(context.Background(), "taken@example.com", nil)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (id, email) VALUES ($1, $2)`)).
		WithArgs(sqlmock.AnyArg(), "new@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u-1", "new@example.com", nil, time.Now()))

	u, err := repo.EnsureUser(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "u-1" || u.PasswordHash != nil {
		t.Errorf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	_, err := repo.GetUserByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByID_Error(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`)).
		WithArgs("u-1").
		WillReturnError(errors.New("query failed"))

	_, err := repo.GetUserByID(context.Background(), "u-1")
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected wrapped query error, got %v", err)
	}
}

func TestSetPassword(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`UPDATE users SET password_hash = $1 WHERE email = $2`)
	mock.ExpectExec(query).WithArgs([]byte("h"), "a@example.com").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs([]byte("h"), "b@example.com").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetPassword(context.Background(), "a@example.com", []byte("h")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.SetPassword(context.Background(), "b@example.com", []byte("h")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCodes_RoundTrip(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	exp := time.Now().Add(10 * time.Minute).UTC()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO auth_codes (email, purpose, code_hash, expires_at)`)).
		WithArgs("a@example.com", "magic_link", []byte("hash"), exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT code_hash, expires_at, attempts FROM auth_codes WHERE email = $1 AND purpose = $2`)).
		WithArgs("a@example.com", "magic_link").
		WillReturnRows(sqlmock.NewRows([]string{"code_hash", "expires_at", "attempts"}).AddRow([]byte("hash"), exp, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM auth_codes WHERE email = $1 AND purpose = $2`)).
		WithArgs("a@example.com", "magic_link").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	err := repo.SaveCode(ctx, models.AuthCode{Email: "a@example.com", Purpose: models.PurposeMagicLink, CodeHash: []byte("hash"), ExpiresAt: exp})
	if err != nil {
		t.Fatalf("SaveCode: %v", err)
	}
	code, err := repo.GetCode(ctx, "a@example.com", models.PurposeMagicLink)
	if err != nil {
		t.Fatalf("GetCode: %v", err)
	}
	if string(code.CodeHash) != "hash" || !code.ExpiresAt.Equal(exp) || code.Attempts != 2 {
		t.Errorf("unexpected code: %+v", code)
	}
	if err := repo.DeleteCode(ctx, "a@example.com", models.PurposeMagicLink); err != nil {
		t.Fatalf("DeleteCode: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetCode_NotFound(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT code_hash, expires_at, attempts FROM auth_codes`)).
		WillReturnRows(sqlmock.NewRows([]string{"code_hash", "expires_at", "attempts"}))

	_, err := repo.GetCode(context.Background(), "a@example.com", models.PurposePasswordReset)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordFailedAttempt(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`UPDATE auth_codes SET attempts = attempts + 1 WHERE email = $1 AND purpose = $2 RETURNING attempts`)
	mock.ExpectQuery(query).
		WithArgs("a@example.com", "magic_link").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))
	mock.ExpectQuery(query).
		WithArgs("b@example.com", "magic_link").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}))

	ctx := context.Background()
	n, err := repo.RecordFailedAttempt(ctx, "a@example.com", models.PurposeMagicLink)
	if err != nil || n != 3 {
		t.Fatalf("RecordFailedAttempt = %d, %v; want 3, nil", n, err)
	}
	if _, err := repo.RecordFailedAttempt(ctx, "b@example.com", models.PurposeMagicLink); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
