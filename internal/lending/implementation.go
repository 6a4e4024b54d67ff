package lending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libris/internal/catalog"
	"libris/internal/journal"
)

const pqUniqueViolation = "23505"

// service implements the Service interface.
type service struct {
	db         *sql.DB
	journal    *journal.Store
	loanPeriod time.Duration
	finePerDay float64

	tracer        trace.Tracer
	issuedCount   metric.Int64Counter
	returnedCount metric.Int64Counter
	finesAssessed metric.Float64Counter
}

// NewService creates a new lending service instance.
func NewService(db *sql.DB, jrnl *journal.Store, loanPeriod time.Duration, finePerDay float64) Service {
	meter := otel.Meter("libris/lending")
	issued, _ := meter.Int64Counter("lending.loans_issued")
	returned, _ := meter.Int64Counter("lending.loans_returned")
	fines, _ := meter.Float64Counter("lending.fines_assessed")

	return &service{
		db:            db,
		journal:       jrnl,
		loanPeriod:    loanPeriod,
		finePerDay:    finePerDay,
		tracer:        otel.Tracer("libris/lending"),
		issuedCount:   issued,
		returnedCount: returned,
		finesAssessed: fines,
	}
}

// RequestLoan creates a pending issue record. No copy is reserved yet, so
// two students may hold pending requests for the same last copy; the loser
// is turned away at approval time.
func (s *service) RequestLoan(ctx context.Context, studentID, bookID uuid.UUID) (*IssueRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.request",
		trace.WithAttributes(
			attribute.String("student.id", studentID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check student: %w", err)
	}
	if !exists {
		return nil, ErrStudentNotFound
	}

	book := &catalog.Book{ID: bookID}
	err = tx.QueryRowContext(ctx, `
		SELECT total_copies, available_copies FROM books WHERE id = $1
	`, bookID).Scan(&book.TotalCopies, &book.AvailableCopies)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("check book: %w", err)
	}

	var open bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM issue_records
			WHERE student_id = $1 AND book_id = $2 AND status IN ('pending', 'issued')
		)
	`, studentID, bookID).Scan(&open)
	if err != nil {
		return nil, fmt.Errorf("check open requests: %w", err)
	}
	if open {
		return nil, ErrDuplicateRequest
	}

	record, err := NewRequest(studentID, bookID, book, time.Now().UTC(), s.finePerDay)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO issue_records (id, student_id, book_id, request_date, status, fine, fine_per_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.ID, record.StudentID, record.BookID, record.RequestDate, record.Status, record.Fine, record.FinePerDay)
	if err != nil {
		// Partial unique index on open (student, book) pairs backstops the
		// duplicate check under concurrent requests.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("insert issue record: %w", err)
	}

	err = s.journal.AppendTx(ctx, tx, record.ID, 0, "LoanRequested", map[string]interface{}{
		"student_id":   record.StudentID,
		"book_id":      record.BookID,
		"request_date": record.RequestDate,
	})
	if err != nil {
		return nil, fmt.Errorf("journal request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return record, nil
}

// ApproveAndIssue moves a pending record to issued and decrements the
// book's availability. Record and book rows are locked for the duration of
// the transaction, so two approvals against the same last copy serialize
// and the second fails with ErrUnavailable, leaving its record pending.
func (s *service) ApproveAndIssue(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.approve",
		trace.WithAttributes(attribute.String("record.id", recordID.String())),
	)
	defer span.End()

	record, err := s.transition(ctx, recordID, func(record *IssueRecord, book *catalog.Book) error {
		return record.ApproveAndIssue(book, time.Now().UTC(), s.loanPeriod)
	}, "LoanIssued", func(record *IssueRecord) map[string]interface{} {
		return map[string]interface{}{
			"issue_date": record.IssueDate,
			"due_date":   record.DueDate,
		}
	})
	if err != nil {
		return nil, err
	}

	s.issuedCount.Add(ctx, 1)
	return record, nil
}

// RejectRequest moves a pending record to rejected. The book's counters are
// untouched; its row is still locked to keep the locking order uniform
// across transitions.
func (s *service) RejectRequest(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.reject",
		trace.WithAttributes(attribute.String("record.id", recordID.String())),
	)
	defer span.End()

	return s.transition(ctx, recordID, func(record *IssueRecord, book *catalog.Book) error {
		return record.Reject()
	}, "LoanRejected", func(record *IssueRecord) map[string]interface{} {
		return map[string]interface{}{}
	})
}

// ReturnBook moves an issued record to returned, increments the book's
// availability and persists the computed fine.
func (s *service) ReturnBook(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error) {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(attribute.String("record.id", recordID.String())),
	)
	defer span.End()

	record, err := s.transition(ctx, recordID, func(record *IssueRecord, book *catalog.Book) error {
		return record.Return(book, time.Now().UTC())
	}, "LoanReturned", func(record *IssueRecord) map[string]interface{} {
		return map[string]interface{}{
			"return_date": record.ReturnDate,
			"fine":        record.Fine,
		}
	})
	if err != nil {
		return nil, err
	}

	s.returnedCount.Add(ctx, 1)
	if record.Fine > 0 {
		s.finesAssessed.Add(ctx, record.Fine)
	}
	return record, nil
}

// transition runs one lifecycle step as a single atomic unit: lock record
// then book, apply the pure transition, persist both rows and append the
// journal event. Any failure rolls the whole step back.
func (s *service) transition(
	ctx context.Context,
	recordID uuid.UUID,
	apply func(*IssueRecord, *catalog.Book) error,
	eventType string,
	payload func(*IssueRecord) map[string]interface{},
) (*IssueRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	record, err := lockRecord(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}

	book, err := lockBook(ctx, tx, record.BookID)
	if err != nil {
		return nil, err
	}

	expectedVersion := record.journalVersion()
	if err := apply(record, book); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books SET available_copies = $1 WHERE id = $2
	`, book.AvailableCopies, book.ID)
	if err != nil {
		return nil, fmt.Errorf("update book availability: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE issue_records
		SET status = $1, issue_date = $2, due_date = $3, return_date = $4, fine = $5
		WHERE id = $6
	`, record.Status, nullableTime(record.IssueDate), nullableTime(record.DueDate),
		nullableTime(record.ReturnDate), record.Fine, record.ID)
	if err != nil {
		return nil, fmt.Errorf("update issue record: %w", err)
	}

	if err := s.journal.AppendTx(ctx, tx, record.ID, expectedVersion, eventType, payload(record)); err != nil {
		return nil, fmt.Errorf("journal %s: %w", eventType, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return record, nil
}

// GetRecord retrieves an issue record by ID.
func (s *service) GetRecord(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, book_id, request_date, issue_date, due_date, return_date, status, fine, fine_per_day
		FROM issue_records
		WHERE id = $1
	`, recordID)

	record, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get issue record: %w", err)
	}
	return record, nil
}

// ListByStudent returns a student's issue records, optionally filtered by
// status, newest request first.
func (s *service) ListByStudent(ctx context.Context, studentID uuid.UUID, status Status) ([]*IssueRecord, error) {
	query := `
		SELECT id, student_id, book_id, request_date, issue_date, due_date, return_date, status, fine, fine_per_day
		FROM issue_records
		WHERE student_id = $1
	`
	args := []interface{}{studentID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY request_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issue records: %w", err)
	}
	defer rows.Close()

	var records []*IssueRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// History returns the journaled transitions of a record.
func (s *service) History(ctx context.Context, recordID uuid.UUID) ([]journal.Event, error) {
	return s.journal.Load(ctx, recordID)
}

func lockRecord(ctx context.Context, tx *sql.Tx, recordID uuid.UUID) (*IssueRecord, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, student_id, book_id, request_date, issue_date, due_date, return_date, status, fine, fine_per_day
		FROM issue_records
		WHERE id = $1
		FOR UPDATE
	`, recordID)

	record, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock issue record: %w", err)
	}
	return record, nil
}

func lockBook(ctx context.Context, tx *sql.Tx, bookID uuid.UUID) (*catalog.Book, error) {
	book := &catalog.Book{ID: bookID}
	err := tx.QueryRowContext(ctx, `
		SELECT total_copies, available_copies FROM books WHERE id = $1 FOR UPDATE
	`, bookID).Scan(&book.TotalCopies, &book.AvailableCopies)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return book, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(scanner rowScanner) (*IssueRecord, error) {
	record := &IssueRecord{}
	var issueDate, dueDate, returnDate sql.NullTime
	err := scanner.Scan(
		&record.ID,
		&record.StudentID,
		&record.BookID,
		&record.RequestDate,
		&issueDate,
		&dueDate,
		&returnDate,
		&record.Status,
		&record.Fine,
		&record.FinePerDay,
	)
	if err != nil {
		return nil, err
	}
	if issueDate.Valid {
		record.IssueDate = issueDate.Time
	}
	if dueDate.Valid {
		record.DueDate = dueDate.Time
	}
	if returnDate.Valid {
		record.ReturnDate = returnDate.Time
	}
	return record, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
