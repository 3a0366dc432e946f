package reservation

import (
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// Transition checks whether r may move to status `to` at instant now.
//
//	ACTIVE -> CANCELLED   any time
//	ACTIVE -> COMPLETED   once now >= EndAt
//
// Both targets are terminal.  Who may ask for a transition is decided by
// Authorize, not here.
func Transition(r model.Reservation, to model.Status, now time.Time) error {
	if r.Status != model.StatusActive {
		return invalidTransition(r.Status, to, "reservation is no longer active")
	}
	switch to {
	case model.StatusCancelled:
		return nil
	case model.StatusCompleted:
		if now.Before(r.EndAt) {
			return invalidTransition(r.Status, to, "reservation has not ended yet")
		}
		return nil
	}
	return invalidTransition(r.Status, to, "unsupported target status")
}

// Authorize allows the reservation's owner and administrators.
func Authorize(actor model.Actor, r model.Reservation) error {
	if actor.IsAdmin() || (actor.UserID != 0 && actor.UserID == r.UserID) {
		return nil
	}
	return apperr.Wrap(apperr.CodeForbidden, ErrForbidden, "reservation belongs to another user")
}

// CanDelete permits removing the record only after it left ACTIVE, so seats
// in flight are never dropped from capacity accounting.
func CanDelete(actor model.Actor, r model.Reservation) error {
	if err := Authorize(actor, r); err != nil {
		return err
	}
	if r.Status == model.StatusActive {
		return apperr.Wrap(apperr.CodeConflict, ErrInvalidTransition, "active reservations must be cancelled before deletion").
			WithDetails(map[string]string{"status": string(r.Status)})
	}
	return nil
}

func invalidTransition(from, to model.Status, msg string) error {
	return apperr.Wrap(apperr.CodeConflict, ErrInvalidTransition, fmt.Sprintf("%s: %s -> %s", msg, from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}
