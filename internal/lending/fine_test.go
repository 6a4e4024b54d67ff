package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCalculateFine(t *testing.T) {
	due := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		returnedAt time.Time
		finePerDay float64
		want       float64
	}{
		{"returned early", due.Add(-48 * time.Hour), 10.00, 0},
		{"returned at the due instant", due, 10.00, 0},
		{"under one day late", due.Add(23 * time.Hour), 10.00, 0},
		{"exactly one day late", due.Add(24 * time.Hour), 10.00, 10.00},
		{"three days late", due.Add(3 * 24 * time.Hour), 10.00, 30.00},
		{"fractional days truncate down", due.Add(3*24*time.Hour + 12*time.Hour), 10.00, 30.00},
		{"different daily rate", due.Add(2 * 24 * time.Hour), 2.50, 5.00},
		{"zero rate", due.Add(10 * 24 * time.Hour), 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fine, err := CalculateFine(due, tc.returnedAt, tc.finePerDay)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fine)
		})
	}
}

func TestCalculateFineUnsetDueDate(t *testing.T) {
	_, err := CalculateFine(time.Time{}, time.Now().UTC(), 10.00)
	assert.ErrorIs(t, err, ErrDueDateUnset)
}

func TestCalculateFineProperties(t *testing.T) {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	rapid.Check(t, func(t *rapid.T) {
		dueOffset := rapid.Int64Range(0, 365*24).Draw(t, "dueOffsetHours")
		returnOffset := rapid.Int64Range(0, 2*365*24).Draw(t, "returnOffsetHours")
		rate := float64(rapid.Int64Range(0, 100).Draw(t, "rate"))

		due := base.Add(time.Duration(dueOffset) * time.Hour)
		returned := base.Add(time.Duration(returnOffset) * time.Hour)

		fine, err := CalculateFine(due, returned, rate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fine < 0 {
			t.Fatalf("fine must never be negative, got %f", fine)
		}
		if !returned.After(due.Add(24*time.Hour-time.Nanosecond)) && fine != 0 {
			t.Fatalf("fine charged before a whole day elapsed: %f", fine)
		}
		wholeDays := int(returned.Sub(due) / (24 * time.Hour))
		if wholeDays > 0 && fine != float64(wholeDays)*rate {
			t.Fatalf("fine %f does not equal %d whole days at %f per day", fine, wholeDays, rate)
		}
	})
}
