package students

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/storage"
)

func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"),
		envOr("PGPORT", "5432"),
		envOr("PGUSER", "libris"),
		envOr("PGPASSWORD", "libris"),
		envOr("PGDATABASE", "libris_test"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("skipping database tests: could not connect to postgres: %v", err)
	}

	if err := storage.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	_, err = db.Exec(`TRUNCATE TABLE loan_events, issue_records, credentials, students, books, categories CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	return db
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestSignupAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()

	student, err := svc.Signup(ctx, &Student{
		FullName:  "Ada Lovelace",
		Email:     "ada@example.com",
		Phone:     "555-0100",
		StudentNo: "STU-001",
	}, "SecurePass123!")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, student.ID)

	authed, err := svc.Authenticate(ctx, "ada@example.com", "SecurePass123!")
	require.NoError(t, err)
	assert.Equal(t, student.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "SecurePass123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupDuplicateKeys(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Signup(ctx, &Student{FullName: "Ada", Email: "ada@example.com", StudentNo: "STU-001"}, "pw-one")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, &Student{FullName: "Eve", Email: "ada@example.com", StudentNo: "STU-002"}, "pw-two")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.Signup(ctx, &Student{FullName: "Eve", Email: "eve@example.com", StudentNo: "STU-001"}, "pw-two")
	assert.ErrorIs(t, err, ErrDuplicateStudentNo)
}

func TestDeleteStudentRemovesDependents(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()

	student, err := svc.Signup(ctx, &Student{FullName: "Ada", Email: "ada@example.com", StudentNo: "STU-001"}, "pw")
	require.NoError(t, err)

	bookID := uuid.New()
	_, err = db.Exec(`
		INSERT INTO books (id, title, author, isbn, total_copies, available_copies)
		VALUES ($1, 'Walden', 'Thoreau', $2, 1, 1)
	`, bookID, bookID.String())
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO issue_records (id, student_id, book_id, status, fine_per_day)
		VALUES ($1, $2, $3, 'pending', 10.00)
	`, uuid.New(), student.ID, bookID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStudent(ctx, student.ID))

	var records, credentials int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM issue_records WHERE student_id = $1`, student.ID).Scan(&records))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM credentials WHERE student_id = $1`, student.ID).Scan(&credentials))
	assert.Zero(t, records)
	assert.Zero(t, credentials)

	assert.ErrorIs(t, svc.DeleteStudent(ctx, student.ID), ErrNotFound)
}

func TestUpdateStudent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()

	student, err := svc.Signup(ctx, &Student{FullName: "Ada", Email: "ada@example.com", StudentNo: "STU-001"}, "pw")
	require.NoError(t, err)

	student.Phone = "555-0199"
	require.NoError(t, svc.UpdateStudent(ctx, student))

	got, err := svc.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0199", got.Phone)

	assert.ErrorIs(t, svc.UpdateStudent(ctx, &Student{ID: uuid.New()}), ErrNotFound)
}
