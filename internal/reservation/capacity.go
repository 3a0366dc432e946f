package reservation

import (
	"fmt"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
)

// Fits is the admission predicate shared by booking and availability.
func Fits(capacity, seats, overlapSeats int) bool {
	return overlapSeats+seats <= capacity
}

// CheckCapacity admits a request for seats when the seats already committed
// in the window leave enough room.  A rejection is a conflict: the caller has
// to pick another time or restaurant, retrying will not help.
func CheckCapacity(capacity, seats, overlapSeats int) error {
	if Fits(capacity, seats, overlapSeats) {
		return nil
	}
	remaining := capacity - overlapSeats
	if remaining < 0 {
		remaining = 0
	}
	return apperr.Wrap(apperr.CodeConflict, ErrCapacityExceeded,
		fmt.Sprintf("only %d of %d seats are free in this window", remaining, capacity)).
		WithDetails(map[string]int{
			"capacity":        capacity,
			"requested_seats": seats,
			"available_seats": remaining,
		})
}

// ValidateSeats rejects seat counts that could never be admitted.
func ValidateSeats(seats, capacity int) error {
	if seats < 1 {
		return apperr.Wrap(apperr.CodeValidation, ErrInvalidSeats, "seats must be at least 1").
			WithDetails(map[string]int{"seats": seats})
	}
	if capacity > 0 && seats > capacity {
		return apperr.Wrap(apperr.CodeValidation, ErrInvalidSeats,
			fmt.Sprintf("seats must not exceed the restaurant capacity of %d", capacity)).
			WithDetails(map[string]int{"seats": seats, "capacity": capacity})
	}
	return nil
}
