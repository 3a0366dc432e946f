package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Reservation records a block of seats a user holds at one restaurant
// for a half-open time window [StartAt, EndAt).
//
// Fields:
//
//	ID           – primary key identifier.
//	RestaurantID – restaurant being booked.
//	UserID       – user who made the reservation.
//	StartAt      – inclusive window start (UTC).
//	EndAt        – exclusive window end (UTC), always after StartAt.
//	Seats        – number of seats held, 1..restaurant capacity.
//	Status       – ACTIVE, CANCELLED or COMPLETED.
//	RemindedAt   – when the reminder was dispatched (nil until then).
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Reservation struct {
	ID           uint64     `json:"id"`            // reservations.id
	RestaurantID uint64     `json:"restaurant_id"` // reservations.restaurant_id
	UserID       uint64     `json:"user_id"`       // reservations.user_id
	StartAt      time.Time  `json:"start_at"`      // reservations.start_at
	EndAt        time.Time  `json:"end_at"`        // reservations.end_at
	Seats        int        `json:"seats"`         // reservations.seats
	Status       Status     `json:"status"`        // reservations.status
	RemindedAt   *time.Time `json:"-"`             // reservations.reminded_at (nullable)
	CreatedAt    time.Time  `json:"created_at"`    // reservations.created_at
	UpdatedAt    time.Time  `json:"updated_at"`    // reservations.updated_at
}

// Holds reports whether the reservation currently occupies seats.  Only
// ACTIVE reservations count against capacity.
func (r Reservation) Holds() bool { return r.Status == StatusActive }

// ReminderTarget is the joined view the reminder sweep needs to address a
// notification: the reservation plus who to send it to and where.
type ReminderTarget struct {
	ReservationID  uint64
	RestaurantID   uint64
	StartAt        time.Time
	UserEmail      string
	UserName       string
	RestaurantName string
}
