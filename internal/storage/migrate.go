package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate applies the schema. Statements are idempotent so the service can
// run them on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			category_id UUID REFERENCES categories(id) ON DELETE SET NULL,
			shelf_no TEXT NOT NULL DEFAULT '',
			isbn TEXT NOT NULL UNIQUE,
			total_copies INT NOT NULL CHECK (total_copies >= 0),
			available_copies INT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			added_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (available_copies >= 0 AND available_copies <= total_copies)
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id UUID PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			phone TEXT NOT NULL DEFAULT '',
			student_no TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			student_id UUID PRIMARY KEY REFERENCES students(id),
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS issue_records (
			id UUID PRIMARY KEY,
			student_id UUID NOT NULL REFERENCES students(id),
			book_id UUID NOT NULL REFERENCES books(id),
			request_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			issue_date TIMESTAMPTZ,
			due_date TIMESTAMPTZ,
			return_date TIMESTAMPTZ,
			status TEXT NOT NULL CHECK (status IN ('pending', 'issued', 'returned', 'rejected')),
			fine NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (fine >= 0),
			fine_per_day NUMERIC(5,2) NOT NULL
		)`,
		// One open request or loan per (student, book) pair.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_issue_records_open_pair
			ON issue_records (student_id, book_id)
			WHERE status IN ('pending', 'issued')`,
		`CREATE INDEX IF NOT EXISTS idx_issue_records_status ON issue_records (status)`,
		`CREATE TABLE IF NOT EXISTS loan_events (
			id BIGSERIAL PRIMARY KEY,
			record_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			event_data JSONB NOT NULL,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (record_id, version)
		)`,
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}

	return nil
}
