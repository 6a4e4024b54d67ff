package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// service implements the Service interface.
type service struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:      db,
		dialect: goqu.Dialect("postgres"),
	}
}

// AddBook creates a new book. All copies of new stock start on the shelf.
func (s *service) AddBook(ctx context.Context, book *Book) (*Book, error) {
	book.ID = uuid.New()
	book.AvailableCopies = book.TotalCopies
	book.AddedDate = time.Now().UTC()

	if err := book.ValidateCopies(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO books (id, title, author, category_id, shelf_no, isbn, total_copies, available_copies, description, added_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		book.ID, book.Title, book.Author, nullableUUID(book.CategoryID), book.ShelfNo,
		book.ISBN, book.TotalCopies, book.AvailableCopies, book.Description, book.AddedDate,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := `
		SELECT id, title, author, category_id, shelf_no, isbn, total_copies, available_copies, description, added_date
		FROM books
		WHERE id = $1
	`
	return scanBook(s.db.QueryRowContext(ctx, query, id))
}

// ListBooks returns all books, newest first.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	query := `
		SELECT id, title, author, category_id, shelf_no, isbn, total_copies, available_copies, description, added_date
		FROM books
		ORDER BY added_date DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

// UpdateBook applies a catalog edit. Copy counts may be adjusted here by a
// librarian, subject to the ledger invariant.
func (s *service) UpdateBook(ctx context.Context, book *Book) error {
	if err := book.ValidateCopies(); err != nil {
		return err
	}

	query := `
		UPDATE books
		SET title = $1, author = $2, category_id = $3, shelf_no = $4, isbn = $5,
		    total_copies = $6, available_copies = $7, description = $8
		WHERE id = $9
	`
	res, err := s.db.ExecContext(ctx, query,
		book.Title, book.Author, nullableUUID(book.CategoryID), book.ShelfNo, book.ISBN,
		book.TotalCopies, book.AvailableCopies, book.Description, book.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrDuplicateISBN
			case pqCheckViolation:
				return ErrInvalidCopies
			}
		}
		return fmt.Errorf("update book: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBook removes a book together with its issue records. The dependent
// records are deleted explicitly in the same transaction rather than through
// a cascading constraint.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_records WHERE book_id = $1`, id); err != nil {
		return fmt.Errorf("delete issue records: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// Search finds books whose title, author, ISBN or shelf contains the query
// substring, optionally restricted to a category.
func (s *service) Search(ctx context.Context, query string, categoryID uuid.UUID) ([]*Book, error) {
	ds := s.dialect.From("books").
		Select("id", "title", "author", "category_id", "shelf_no", "isbn",
			"total_copies", "available_copies", "description", "added_date").
		Order(goqu.C("added_date").Desc()).
		Limit(100)

	if query != "" {
		pattern := "%" + query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("isbn").ILike(pattern),
			goqu.C("shelf_no").ILike(pattern),
		))
	}
	if categoryID != uuid.Nil {
		ds = ds.Where(goqu.C("category_id").Eq(categoryID.String()))
	}

	sqlQuery, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

// AddCategory creates a new category.
func (s *service) AddCategory(ctx context.Context, name string) (*Category, error) {
	category := &Category{ID: uuid.New(), Name: name}

	_, err := s.db.ExecContext(ctx, `INSERT INTO categories (id, name) VALUES ($1, $2)`, category.ID, category.Name)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}

	return category, nil
}

// ListCategories returns all categories by name.
func (s *service) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		category := &Category{}
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a category. Books keep existing with no category
// (the foreign key is ON DELETE SET NULL).
func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBookRow(scanner rowScanner) (*Book, error) {
	book := &Book{}
	var categoryID uuid.NullUUID
	err := scanner.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&categoryID,
		&book.ShelfNo,
		&book.ISBN,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.Description,
		&book.AddedDate,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		book.CategoryID = categoryID.UUID
	}
	return book, nil
}

func scanBook(row *sql.Row) (*Book, error) {
	book, err := scanBookRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func collectBooks(rows *sql.Rows) ([]*Book, error) {
	var books []*Book
	for rows.Next() {
		book, err := scanBookRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
