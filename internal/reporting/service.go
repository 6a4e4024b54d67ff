package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Overview is the librarian dashboard headline.
type Overview struct {
	TotalBooks      int `db:"total_books" json:"total_books"`
	TotalStudents   int `db:"total_students" json:"total_students"`
	PendingRequests int `db:"pending_requests" json:"pending_requests"`
	IssuedBooks     int `db:"issued_books" json:"issued_books"`
	OverdueBooks    int `db:"overdue_books" json:"overdue_books"`
}

// Loan is a reporting row joining an issue record with its student and book.
type Loan struct {
	RecordID    uuid.UUID  `db:"record_id" json:"record_id"`
	StudentName string     `db:"student_name" json:"student_name"`
	BookTitle   string     `db:"book_title" json:"book_title"`
	RequestDate time.Time  `db:"request_date" json:"request_date"`
	IssueDate   *time.Time `db:"issue_date" json:"issue_date,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	ReturnDate  *time.Time `db:"return_date" json:"return_date,omitempty"`
	Status      string     `db:"status" json:"status"`
}

// Fine is one assessed fine with a running total over the listing.
type Fine struct {
	RecordID     uuid.UUID  `db:"record_id" json:"record_id"`
	StudentName  string     `db:"student_name" json:"student_name"`
	BookTitle    string     `db:"book_title" json:"book_title"`
	ReturnDate   *time.Time `db:"return_date" json:"return_date,omitempty"`
	Amount       float64    `db:"amount" json:"amount"`
	RunningTotal float64    `db:"-" json:"running_total"`
}

// FinesReport lists outstanding fines, newest return first, with the total.
type FinesReport struct {
	Fines []Fine  `json:"fines"`
	Total float64 `json:"total"`
}

// StudentSummary aggregates one student's lending activity.
type StudentSummary struct {
	PendingRequests int     `db:"pending_requests" json:"pending_requests"`
	IssuedBooks     int     `db:"issued_books" json:"issued_books"`
	ReturnedBooks   int     `db:"returned_books" json:"returned_books"`
	TotalFines      float64 `db:"total_fines" json:"total_fines"`
}

// Service defines the read-only reporting facade. Queries are snapshot
// reads and may run concurrently with lending mutations; slightly stale
// counts are acceptable.
type Service interface {
	Overview(ctx context.Context) (*Overview, error)
	RecentPending(ctx context.Context, limit int) ([]Loan, error)
	IssuedLoans(ctx context.Context) ([]Loan, error)
	OverdueLoans(ctx context.Context) ([]Loan, error)
	Fines(ctx context.Context) (*FinesReport, error)
	StudentSummary(ctx context.Context, studentID uuid.UUID) (*StudentSummary, error)
}
