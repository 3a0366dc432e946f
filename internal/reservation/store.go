package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// Store is the persistence the engine needs.  Lookups return
// ErrRestaurantNotFound / ErrReservationNotFound for unknown ids.
type Store interface {
	Restaurant(ctx context.Context, id uint64) (model.Restaurant, error)
	// ActiveInRange returns ACTIVE reservations of a restaurant whose window
	// intersects [from, to).
	ActiveInRange(ctx context.Context, restaurantID uint64, from, to time.Time) ([]model.Reservation, error)
	// Admit runs fn as one atomic unit that excludes every other admission
	// for the same restaurant.  An error from fn rolls everything back.
	Admit(ctx context.Context, restaurantID uint64, fn func(ctx context.Context, tx AdmissionTx) error) error

	Reservation(ctx context.Context, id uint64) (model.Reservation, error)
	List(ctx context.Context, f Filter) ([]model.Reservation, int, error)
	// UpdateStatus moves id from one status to another and reports whether a
	// row matched; false means the status changed underneath the caller.
	UpdateStatus(ctx context.Context, id uint64, from, to model.Status) (bool, error)
	// DeleteInactive removes id unless it is ACTIVE.
	DeleteInactive(ctx context.Context, id uint64) (bool, error)
}

// AdmissionTx is the view of the store inside an admission unit.
type AdmissionTx interface {
	// LockRestaurant loads the restaurant and holds it until the unit ends.
	LockRestaurant(ctx context.Context, id uint64) (model.Restaurant, error)
	ActiveInRange(ctx context.Context, restaurantID uint64, from, to time.Time) ([]model.Reservation, error)
	Insert(ctx context.Context, r *model.Reservation) error
}

// Notifier is told about admitted bookings once they are durable.
type Notifier interface {
	BookingConfirmed(ctx context.Context, restaurant model.Restaurant, r model.Reservation) error
}

// AdmissionRecorder counts admission outcomes.
type AdmissionRecorder interface {
	RecordAdmission(outcome string)
}

const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "capacity_exceeded"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "error"
)
