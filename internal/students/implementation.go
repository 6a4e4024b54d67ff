package students

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/time/rate"
)

const pqUniqueViolation = "23505"

// service implements the Service interface.
type service struct {
	db          *sql.DB
	rateLimiter *rate.Limiter
}

// NewService creates a new students service instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:          db,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 attempts per minute
	}
}

// Signup registers a new student and stores their credentials in the same
// transaction.
func (s *service) Signup(ctx context.Context, student *Student, password string) (*Student, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	student.ID = uuid.New()
	student.CreatedAt = time.Now().UTC()

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO students (id, full_name, email, phone, student_no, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, student.ID, student.FullName, student.Email, student.Phone, student.StudentNo, student.CreatedAt)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (student_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`, student.ID, passwordHash, salt)
	if err != nil {
		return nil, fmt.Errorf("insert credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return student, nil
}

// Authenticate verifies a student's credentials.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Student, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	student := &Student{}
	var credential Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.full_name, s.email, s.phone, s.student_no, s.created_at, c.password_hash, c.salt
		FROM students s
		JOIN credentials c ON c.student_id = s.id
		WHERE s.email = $1
	`, email).Scan(
		&student.ID, &student.FullName, &student.Email, &student.Phone,
		&student.StudentNo, &student.CreatedAt, &credential.PasswordHash, &credential.Salt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up student: %w", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return student, nil
}

// GetStudent retrieves a student by their ID.
func (s *service) GetStudent(ctx context.Context, id uuid.UUID) (*Student, error) {
	student := &Student{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, student_no, created_at
		FROM students
		WHERE id = $1
	`, id).Scan(&student.ID, &student.FullName, &student.Email, &student.Phone, &student.StudentNo, &student.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// ListStudents returns all students by name.
func (s *service) ListStudents(ctx context.Context) ([]*Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, phone, student_no, created_at
		FROM students
		ORDER BY full_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var result []*Student
	for rows.Next() {
		student := &Student{}
		if err := rows.Scan(&student.ID, &student.FullName, &student.Email, &student.Phone, &student.StudentNo, &student.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result = append(result, student)
	}
	return result, rows.Err()
}

// UpdateStudent applies a librarian edit to the profile.
func (s *service) UpdateStudent(ctx context.Context, student *Student) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET full_name = $1, email = $2, phone = $3, student_no = $4
		WHERE id = $5
	`, student.FullName, student.Email, student.Phone, student.StudentNo, student.ID)
	if err != nil {
		return mapUniqueViolation(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStudent removes a student. Their credentials and issue records are
// deleted explicitly in the same transaction; nothing cascades implicitly.
func (s *service) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_records WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete issue records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func mapUniqueViolation(err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
		if strings.Contains(pqErr.Constraint, "student_no") {
			return ErrDuplicateStudentNo
		}
		return ErrDuplicateEmail
	}
	return fmt.Errorf("write student: %w", err)
}
