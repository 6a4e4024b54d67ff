package lending

import (
	"errors"
	"time"
)

// ErrDueDateUnset is reported when a fine is computed for a record that was
// never issued.
var ErrDueDateUnset = errors.New("due date is not set")

// CalculateFine computes the overdue fine: whole days late times the daily
// rate. Fractional days truncate toward zero, so a return at the exact due
// instant or within the first 24 hours after it costs nothing extra.
func CalculateFine(dueDate, returnDate time.Time, finePerDay float64) (float64, error) {
	if dueDate.IsZero() {
		return 0, ErrDueDateUnset
	}
	late := returnDate.Sub(dueDate)
	if late <= 0 {
		return 0, nil
	}
	lateDays := int(late / (24 * time.Hour))
	return float64(lateDays) * finePerDay, nil
}
