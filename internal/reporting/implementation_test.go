package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/storage"
)

func setupTestDB(t testing.TB) *sqlx.DB {
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

	return sqlx.NewDb(db, "postgres")
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func seedStudent(t testing.TB, db *sqlx.DB, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO students (id, full_name, email, phone, student_no)
		VALUES ($1, $2, $3, '', $4)
	`, id, name, id.String()+"@example.com", id.String())
	require.NoError(t, err)
	return id
}

func seedBook(t testing.TB, db *sqlx.DB, title string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO books (id, title, author, isbn, total_copies, available_copies)
		VALUES ($1, $2, 'Author', $3, 5, 5)
	`, id, title, id.String())
	require.NoError(t, err)
	return id
}

func seedRecord(t testing.TB, db *sqlx.DB, studentID, bookID uuid.UUID, status string, requestedAt time.Time, dueAt, returnedAt *time.Time, fine float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO issue_records (id, student_id, book_id, request_date, due_date, return_date, status, fine, fine_per_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 10.00)
	`, id, studentID, bookID, requestedAt, dueAt, returnedAt, status, fine)
	require.NoError(t, err)
	return id
}

func TestOverviewAndLists(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := seedStudent(t, db, "Alice")
	bob := seedStudent(t, db, "Bob")
	bookA := seedBook(t, db, "Walden")
	bookB := seedBook(t, db, "Ulysses")

	// Two pending requests, one current loan, one overdue loan.
	seedRecord(t, db, alice, bookA, "pending", now.Add(-2*time.Hour), nil, nil, 0)
	seedRecord(t, db, bob, bookA, "pending", now.Add(-1*time.Hour), nil, nil, 0)
	dueSoon := now.Add(48 * time.Hour)
	seedRecord(t, db, alice, bookB, "issued", now.Add(-72*time.Hour), &dueSoon, nil, 0)
	overdueSince := now.Add(-24 * time.Hour)
	seedRecord(t, db, bob, bookB, "issued", now.Add(-8*24*time.Hour), &overdueSince, nil, 0)

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.TotalBooks)
	assert.Equal(t, 2, overview.TotalStudents)
	assert.Equal(t, 2, overview.PendingRequests)
	assert.Equal(t, 2, overview.IssuedBooks)
	assert.Equal(t, 1, overview.OverdueBooks)

	pending, err := svc.RecentPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Bob", pending[0].StudentName, "newest request comes first")

	issued, err := svc.IssuedLoans(ctx)
	require.NoError(t, err)
	require.Len(t, issued, 2)
	assert.Equal(t, "Bob", issued[0].StudentName, "soonest due comes first")

	overdue, err := svc.OverdueLoans(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Bob", overdue[0].StudentName)
}

func TestFinesRunningTotal(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := seedStudent(t, db, "Alice")
	book := seedBook(t, db, "Walden")

	older := now.Add(-48 * time.Hour)
	newer := now.Add(-1 * time.Hour)
	due := now.Add(-10 * 24 * time.Hour)
	seedRecord(t, db, alice, book, "returned", now.Add(-12*24*time.Hour), &due, &older, 20.00)
	seedRecord(t, db, alice, book, "returned", now.Add(-11*24*time.Hour), &due, &newer, 50.00)
	// On-time return, no fine: must not appear in the listing.
	onTime := now.Add(-30 * time.Hour)
	futureDue := now.Add(24 * time.Hour)
	seedRecord(t, db, alice, book, "returned", now.Add(-9*24*time.Hour), &futureDue, &onTime, 0)

	report, err := svc.Fines(ctx)
	require.NoError(t, err)
	require.Len(t, report.Fines, 2)

	assert.Equal(t, 50.00, report.Fines[0].Amount, "newest return first")
	assert.Equal(t, 50.00, report.Fines[0].RunningTotal)
	assert.Equal(t, 20.00, report.Fines[1].Amount)
	assert.Equal(t, 70.00, report.Fines[1].RunningTotal)
	assert.Equal(t, 70.00, report.Total)
}

func TestStudentSummary(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := seedStudent(t, db, "Alice")
	bob := seedStudent(t, db, "Bob")
	bookA := seedBook(t, db, "Walden")
	bookB := seedBook(t, db, "Ulysses")

	due := now.Add(24 * time.Hour)
	returnedAt := now.Add(-1 * time.Hour)
	seedRecord(t, db, alice, bookA, "pending", now, nil, nil, 0)
	seedRecord(t, db, alice, bookB, "issued", now.Add(-time.Hour), &due, nil, 0)
	seedRecord(t, db, alice, bookA, "returned", now.Add(-48*time.Hour), &due, &returnedAt, 15.00)
	seedRecord(t, db, bob, bookA, "issued", now, &due, nil, 0)

	summary, err := svc.StudentSummary(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PendingRequests)
	assert.Equal(t, 1, summary.IssuedBooks)
	assert.Equal(t, 1, summary.ReturnedBooks)
	assert.Equal(t, 15.00, summary.TotalFines)
}
