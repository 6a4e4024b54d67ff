package lending

import (
	"context"

	"github.com/google/uuid"

	"libris/internal/journal"
)

// Service defines the interface for the lending service. Every mutation is
// one atomic transaction: the status transition, the paired inventory
// adjustment and the journal append commit together or not at all.
type Service interface {
	RequestLoan(ctx context.Context, studentID, bookID uuid.UUID) (*IssueRecord, error)
	ApproveAndIssue(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error)
	RejectRequest(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error)
	ReturnBook(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error)

	GetRecord(ctx context.Context, recordID uuid.UUID) (*IssueRecord, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, status Status) ([]*IssueRecord, error)
	History(ctx context.Context, recordID uuid.UUID) ([]journal.Event, error)
}
