package students

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the students service.
type Service interface {
	Signup(ctx context.Context, student *Student, password string) (*Student, error)
	Authenticate(ctx context.Context, email, password string) (*Student, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*Student, error)
	ListStudents(ctx context.Context) ([]*Student, error)
	UpdateStudent(ctx context.Context, student *Student) error
	DeleteStudent(ctx context.Context, id uuid.UUID) error
}
