package lending

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libris/internal/catalog"
)

var (
	ErrUnavailable       = errors.New("book is not available")
	ErrDuplicateRequest  = errors.New("student already has an open request or loan for this book")
	ErrInvalidTransition = errors.New("operation not permitted in the record's current state")
	ErrNotFound          = errors.New("issue record not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrStudentNotFound   = errors.New("student not found")
)

// Status is the lifecycle state of an issue record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusIssued   Status = "issued"
	StatusReturned Status = "returned"
	StatusRejected Status = "rejected"
)

// IssueRecord tracks one student's request for one book through its
// lifecycle: pending -> issued -> returned, or pending -> rejected.
type IssueRecord struct {
	ID          uuid.UUID `json:"id"`
	StudentID   uuid.UUID `json:"student_id"`
	BookID      uuid.UUID `json:"book_id"`
	RequestDate time.Time `json:"request_date"`
	IssueDate   time.Time `json:"issue_date,omitempty"`
	DueDate     time.Time `json:"due_date,omitempty"`
	ReturnDate  time.Time `json:"return_date,omitempty"`
	Status      Status    `json:"status"`
	Fine        float64   `json:"fine"`
	FinePerDay  float64   `json:"fine_per_day"`
}

// NewRequest creates a pending record for (student, book). Availability is
// checked but no copy is reserved; reservation happens at approval time.
// The fine rate is captured now so later rate changes don't retroactively
// alter this loan.
func NewRequest(studentID, bookID uuid.UUID, book *catalog.Book, now time.Time, finePerDay float64) (*IssueRecord, error) {
	if book.AvailableCopies <= 0 {
		return nil, ErrUnavailable
	}
	return &IssueRecord{
		ID:          uuid.New(),
		StudentID:   studentID,
		BookID:      bookID,
		RequestDate: now,
		Status:      StatusPending,
		FinePerDay:  finePerDay,
	}, nil
}

// ApproveAndIssue moves a pending record to issued and reserves one copy.
// Approval and issuing are a single transition. Availability is re-checked
// here because it may have changed since the request was made; on failure
// the record stays pending and nothing is modified.
func (r *IssueRecord) ApproveAndIssue(book *catalog.Book, now time.Time, loanPeriod time.Duration) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	if err := book.ReserveCopy(); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	r.Status = StatusIssued
	r.IssueDate = now
	r.DueDate = now.Add(loanPeriod)
	return nil
}

// Reject moves a pending record to rejected. No inventory effect. Rejecting
// a record that is not pending is an error, not a no-op.
func (r *IssueRecord) Reject() error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Status = StatusRejected
	return nil
}

// Return moves an issued record to returned, releases the copy and computes
// the fine. On any failure nothing is modified.
func (r *IssueRecord) Return(book *catalog.Book, now time.Time) error {
	if r.Status != StatusIssued {
		return ErrInvalidTransition
	}
	fine, err := CalculateFine(r.DueDate, now, r.FinePerDay)
	if err != nil {
		return err
	}
	if err := book.ReleaseCopy(); err != nil {
		return err
	}
	r.Status = StatusReturned
	r.ReturnDate = now
	r.Fine = fine
	return nil
}

// journalVersion is the number of journal events a record in this state has
// accumulated; the next append uses it as the expected version. A rejected
// record holds two events (requested, rejected), a returned one three.
func (r *IssueRecord) journalVersion() int {
	switch r.Status {
	case StatusIssued, StatusRejected:
		return 2
	case StatusReturned:
		return 3
	default:
		return 1
	}
}
