package reporting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// service implements the Service interface.
type service struct {
	db *sqlx.DB
}

// NewService creates a new reporting service instance.
func NewService(db *sqlx.DB) Service {
	return &service{db: db}
}

// Overview computes the librarian dashboard counters. Overdue is derived on
// read from due_date, never stored.
func (s *service) Overview(ctx context.Context) (*Overview, error) {
	overview := &Overview{}
	err := s.db.GetContext(ctx, overview, `
		SELECT
			(SELECT COUNT(*) FROM books) AS total_books,
			(SELECT COUNT(*) FROM students) AS total_students,
			(SELECT COUNT(*) FROM issue_records WHERE status = 'pending') AS pending_requests,
			(SELECT COUNT(*) FROM issue_records WHERE status = 'issued') AS issued_books,
			(SELECT COUNT(*) FROM issue_records WHERE status = 'issued' AND due_date < NOW()) AS overdue_books
	`)
	if err != nil {
		return nil, fmt.Errorf("query overview: %w", err)
	}
	return overview, nil
}

const loanColumns = `
	ir.id AS record_id,
	s.full_name AS student_name,
	b.title AS book_title,
	ir.request_date,
	ir.issue_date,
	ir.due_date,
	ir.return_date,
	ir.status
`

// RecentPending returns the newest pending requests.
func (s *service) RecentPending(ctx context.Context, limit int) ([]Loan, error) {
	if limit <= 0 {
		limit = 5
	}
	var loans []Loan
	err := s.db.SelectContext(ctx, &loans, `
		SELECT `+loanColumns+`
		FROM issue_records ir
		JOIN students s ON s.id = ir.student_id
		JOIN books b ON b.id = ir.book_id
		WHERE ir.status = 'pending'
		ORDER BY ir.request_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	return loans, nil
}

// IssuedLoans returns active loans ordered by how soon they are due.
func (s *service) IssuedLoans(ctx context.Context) ([]Loan, error) {
	var loans []Loan
	err := s.db.SelectContext(ctx, &loans, `
		SELECT `+loanColumns+`
		FROM issue_records ir
		JOIN students s ON s.id = ir.student_id
		JOIN books b ON b.id = ir.book_id
		WHERE ir.status = 'issued'
		ORDER BY ir.due_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query issued loans: %w", err)
	}
	return loans, nil
}

// OverdueLoans returns active loans past their due date.
func (s *service) OverdueLoans(ctx context.Context) ([]Loan, error) {
	var loans []Loan
	err := s.db.SelectContext(ctx, &loans, `
		SELECT `+loanColumns+`
		FROM issue_records ir
		JOIN students s ON s.id = ir.student_id
		JOIN books b ON b.id = ir.book_id
		WHERE ir.status = 'issued' AND ir.due_date < NOW()
		ORDER BY ir.due_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query overdue loans: %w", err)
	}
	return loans, nil
}

// Fines lists assessed fines, newest return first, with a running total.
func (s *service) Fines(ctx context.Context) (*FinesReport, error) {
	var fines []Fine
	err := s.db.SelectContext(ctx, &fines, `
		SELECT
			ir.id AS record_id,
			s.full_name AS student_name,
			b.title AS book_title,
			ir.return_date,
			ir.fine AS amount
		FROM issue_records ir
		JOIN students s ON s.id = ir.student_id
		JOIN books b ON b.id = ir.book_id
		WHERE ir.fine > 0
		ORDER BY ir.return_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query fines: %w", err)
	}

	report := &FinesReport{Fines: fines}
	for i := range report.Fines {
		report.Total += report.Fines[i].Amount
		report.Fines[i].RunningTotal = report.Total
	}
	return report, nil
}

// StudentSummary aggregates one student's activity for their dashboard.
func (s *service) StudentSummary(ctx context.Context, studentID uuid.UUID) (*StudentSummary, error) {
	summary := &StudentSummary{}
	err := s.db.GetContext(ctx, summary, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_requests,
			COUNT(*) FILTER (WHERE status = 'issued') AS issued_books,
			COUNT(*) FILTER (WHERE status = 'returned') AS returned_books,
			COALESCE(SUM(fine) FILTER (WHERE status = 'returned'), 0) AS total_fines
		FROM issue_records
		WHERE student_id = $1
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query student summary: %w", err)
	}
	return summary, nil
}
