package reservation

import "errors"

// Sentinels for the engine's failure modes.  Service methods wrap them in an
// *apperr.Error carrying the taxonomy code, so callers can match on either.
var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidSeats      = errors.New("invalid seat count")
	ErrInvalidQuery      = errors.New("invalid query")

	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")

	ErrRestaurantNotFound  = errors.New("restaurant not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrUserNotFound        = errors.New("user not found")
)
