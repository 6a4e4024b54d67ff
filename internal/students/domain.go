package students

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("student not found")
	ErrDuplicateEmail     = errors.New("a student with this email already exists")
	ErrDuplicateStudentNo = errors.New("a student with this student number already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many attempts, try again later")
)

// Student is a library member who can request and borrow books.
type Student struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	StudentNo string    `json:"student_no"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential holds a student's login secret, stored separately from the
// profile and never serialized.
type Credential struct {
	StudentID    uuid.UUID `json:"-"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}
