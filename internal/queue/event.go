// Package queue carries notification requests to the email collaborator over
// RabbitMQ: booking confirmations and upcoming-reservation reminders.
package queue

// BookingConfirmed is published once a reservation has been admitted and
// committed.  It holds everything the email template needs, so the mailer
// never queries the primary database.
type BookingConfirmed struct {
	ReservationID  uint64 `json:"reservation_id"`
	UserID         uint64 `json:"user_id"`
	To             string `json:"to,omitempty"`
	Name           string `json:"name,omitempty"`
	RestaurantID   uint64 `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	Seats          int    `json:"seats"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	ConfirmedAt    string `json:"confirmed_at"`
}

// ReminderRequested asks the mailer to remind a guest about an upcoming
// reservation.  Time is the start time already formatted for display in the
// restaurant's time zone.
type ReminderRequested struct {
	ReservationID uint64 `json:"reservation_id"`
	To            string `json:"to"`
	Name          string `json:"name"`
	Restaurant    string `json:"restaurant"`
	Time          string `json:"time"`
	StartAt       string `json:"start_at"`
}
