package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReserveCopy(t *testing.T) {
	book := &Book{TotalCopies: 2, AvailableCopies: 2}

	require.NoError(t, book.ReserveCopy())
	assert.Equal(t, 1, book.AvailableCopies)

	require.NoError(t, book.ReserveCopy())
	assert.Equal(t, 0, book.AvailableCopies)

	err := book.ReserveCopy()
	assert.ErrorIs(t, err, ErrInventoryExhausted)
	assert.Equal(t, 0, book.AvailableCopies)
}

func TestReleaseCopy(t *testing.T) {
	book := &Book{TotalCopies: 2, AvailableCopies: 1}

	require.NoError(t, book.ReleaseCopy())
	assert.Equal(t, 2, book.AvailableCopies)

	err := book.ReleaseCopy()
	assert.ErrorIs(t, err, ErrInventoryOverflow)
	assert.Equal(t, 2, book.AvailableCopies)
}

func TestValidateCopies(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		available int
		wantErr   bool
	}{
		{"all on shelf", 3, 3, false},
		{"some on loan", 3, 1, false},
		{"empty catalog entry", 0, 0, false},
		{"negative total", -1, 0, true},
		{"negative available", 2, -1, true},
		{"available exceeds total", 2, 3, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			book := &Book{TotalCopies: tc.total, AvailableCopies: tc.available}
			err := book.ValidateCopies()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCopies)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Any interleaving of reserves and releases keeps 0 <= available <= total.
func TestLedgerInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 10).Draw(t, "total")
		book := &Book{TotalCopies: total, AvailableCopies: total}

		ops := rapid.IntRange(1, 50).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "reserve") {
				_ = book.ReserveCopy()
			} else {
				_ = book.ReleaseCopy()
			}
			if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
				t.Fatalf("invariant violated: available=%d total=%d", book.AvailableCopies, book.TotalCopies)
			}
		}
	})
}
