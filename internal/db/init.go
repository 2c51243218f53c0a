// Package db opens the PostgreSQL connection, applies the schema and runs
// background housekeeping.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash BYTEA,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
    id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    full_name TEXT,
    age INTEGER CHECK (age > 0),
    gender TEXT,
    city TEXT,
    country TEXT,
    photo_urls TEXT[],
    smoking TEXT,
    drinking TEXT,
    diet TEXT,
    prayer TEXT,
    religiosity TEXT,
    bio TEXT,
    marriage_timeline TEXT,
    want_children TEXT,
    willing_to_relocate BOOLEAN,
    phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
    profile_verified BOOLEAN NOT NULL DEFAULT FALSE,
    onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS auth_codes (
    email TEXT NOT NULL,
    purpose TEXT NOT NULL,
    code_hash BYTEA NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    attempts INT NOT NULL DEFAULT 0,
    PRIMARY KEY (email, purpose)
);

ALTER TABLE auth_codes ADD COLUMN IF NOT EXISTS attempts INT NOT NULL DEFAULT 0;
`

// InitPostgres opens dsn, verifies the connection and creates missing tables.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
