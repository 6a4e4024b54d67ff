package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("book not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrDuplicateISBN      = errors.New("a book with this ISBN already exists")
	ErrDuplicateCategory  = errors.New("a category with this name already exists")
	ErrInventoryExhausted = errors.New("no available copies to reserve")
	ErrInventoryOverflow  = errors.New("available copies would exceed total copies")
	ErrInvalidCopies      = errors.New("copy counts must satisfy 0 <= available <= total")
)

// Book is the inventory unit. AvailableCopies is the number of physical
// copies currently not on loan.
type Book struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	CategoryID      uuid.UUID `json:"category_id,omitempty"`
	ShelfNo         string    `json:"shelf_no"`
	ISBN            string    `json:"isbn"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	Description     string    `json:"description,omitempty"`
	AddedDate       time.Time `json:"added_date"`
}

// Category groups books for browsing.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ReserveCopy takes one copy off the shelf. Last line of defense against
// over-issuing; the storage layer guards the same invariant with a
// conditional update.
func (b *Book) ReserveCopy() error {
	if b.AvailableCopies <= 0 {
		return ErrInventoryExhausted
	}
	b.AvailableCopies--
	return nil
}

// ReleaseCopy puts one copy back on the shelf.
func (b *Book) ReleaseCopy() error {
	if b.AvailableCopies >= b.TotalCopies {
		return ErrInventoryOverflow
	}
	b.AvailableCopies++
	return nil
}

// ValidateCopies checks the ledger invariant on externally supplied counts.
func (b *Book) ValidateCopies() error {
	if b.TotalCopies < 0 || b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
		return ErrInvalidCopies
	}
	return nil
}
