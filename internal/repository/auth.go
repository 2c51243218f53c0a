// Package repository provides PostgreSQL persistence for users, one-time
// auth codes and profiles.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresAuthRepository implements user and auth-code persistence using a PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// CreateUser inserts a new user with a fresh UUID.
// Returns apperr.ErrConflict if the email is already registered.
func (s *PostgresAuthRepository) CreateUser(ctx context.Context, email string, passwordHash []byte) (models.User, error) {
	u := models.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Email, passwordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("create user: %w", apperr.ErrConflict)
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureUser returns the user registered under email, creating a
// password-less one if none exists. Used by magic-link sign-in.
func (s *PostgresAuthRepository) EnsureUser(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, password_hash, created_at
	`, uuid.NewString(), email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by login email.
// Returns apperr.ErrNotFound when no such user exists.
func (s *PostgresAuthRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

// GetUserByID fetches a user by ID.
// Returns apperr.ErrNotFound when no such user exists.
func (s *PostgresAuthRepository) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *PostgresAuthRepository) getUser(ctx context.Context, query string, arg string) (models.User, error) {
	var u models.User
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetPassword replaces the password hash of the user registered under email.
func (s *PostgresAuthRepository) SetPassword(ctx context.Context, email string, passwordHash []byte) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE email = $2`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SaveCode stores (or replaces) the pending code for email and purpose.
func (s *PostgresAuthRepository) SaveCode(ctx context.Context, code models.AuthCode) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO auth_codes (email, purpose, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email, purpose) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			attempts = 0
	`, code.Email, string(code.Purpose), code.CodeHash, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

// GetCode fetches the pending code for email and purpose.
// Returns apperr.ErrNotFound when there is none.
func (s *PostgresAuthRepository) GetCode(ctx context.Context, email string, purpose models.CodePurpose) (models.AuthCode, error) {
	c := models.AuthCode{Email: email, Purpose: purpose}
	err := s.DB.QueryRowContext(ctx,
		`SELECT code_hash, expires_at, attempts FROM auth_codes WHERE email = $1 AND purpose = $2`,
		email, string(purpose),
	).Scan(&c.CodeHash, &c.ExpiresAt, &c.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AuthCode{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.AuthCode{}, fmt.Errorf("get code: %w", err)
	}
	return c, nil
}

// RecordFailedAttempt counts a wrong guess against the pending code and
// returns the new total. Returns apperr.ErrNotFound when there is no code.
func (s *PostgresAuthRepository) RecordFailedAttempt(ctx context.Context, email string, purpose models.CodePurpose) (int, error) {
	var attempts int
	err := s.DB.QueryRowContext(ctx,
		`UPDATE auth_codes SET attempts = attempts + 1 WHERE email = $1 AND purpose = $2 RETURNING attempts`,
		email, string(purpose),
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	return attempts, nil
}

// DeleteCode removes the pending code for email and purpose.
func (s *PostgresAuthRepository) DeleteCode(ctx context.Context, email string, purpose models.CodePurpose) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM auth_codes WHERE email = $1 AND purpose = $2`, email, string(purpose))
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
