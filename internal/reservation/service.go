// Package reservation is the scheduling and capacity engine: it admits
// bookings against a restaurant's seating capacity, answers availability
// questions and enforces the reservation lifecycle.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

const notifyTimeout = 5 * time.Second

type ServiceParams struct {
	Store    Store
	Logger   *logger.Logger
	Clock    Clock
	Location *time.Location
	Locks    *KeyedMutex
	Notifier Notifier
	Recorder AdmissionRecorder
}

type Service struct {
	store    Store
	logg     *logger.Logger
	clock    Clock
	loc      *time.Location
	locks    *KeyedMutex
	notifier Notifier
	recorder AdmissionRecorder
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.Locks == nil {
		p.Locks = NewKeyedMutex()
	}
	return &Service{
		store:    p.Store,
		logg:     p.Logger,
		clock:    p.Clock,
		loc:      p.Location,
		locks:    p.Locks,
		notifier: p.Notifier,
		recorder: p.Recorder,
	}, nil
}

// Location is the zone dates and times of day are interpreted in.
func (s *Service) Location() *time.Location { return s.loc }

// BookRequest carries the primitive booking inputs.
type BookRequest struct {
	RestaurantID uint64
	Date         string
	Time         string
	Duration     int
	Seats        int
}

// Book admits a reservation if the restaurant has room for the seats over
// the whole window.  The overlap read and the insert run under the
// per-restaurant lock and inside one store transaction; a capacity conflict
// aborts both with nothing written.
func (s *Service) Book(ctx context.Context, actor model.Actor, req BookRequest) (model.Reservation, error) {
	if actor.UserID == 0 {
		return model.Reservation{}, apperr.New(apperr.CodeUnauthorized, "authenticated user required")
	}
	w, err := NewWindow(req.Date, req.Time, req.Duration, s.loc)
	if err != nil {
		s.record(OutcomeInvalid)
		return model.Reservation{}, err
	}
	if err := ValidateSeats(req.Seats, 0); err != nil {
		s.record(OutcomeInvalid)
		return model.Reservation{}, err
	}
	if now := s.clock.Now(); w.Start.Before(now) {
		s.record(OutcomeInvalid)
		return model.Reservation{}, apperr.Wrap(apperr.CodeValidation, ErrInvalidDate, "reservation must start in the future").
			WithDetails(map[string]string{"start": w.Start.Format(time.RFC3339)})
	}

	ctx = s.logg.WithRestaurantID(s.logg.WithUserID(ctx, actor.UserID), req.RestaurantID)

	created, restaurant, err := s.admit(ctx, actor, req, w)
	if err != nil {
		err = storeErr(err, "admit reservation")
		switch {
		case errors.Is(err, ErrCapacityExceeded):
			s.record(OutcomeRejected)
			s.logg.Info(ctx, "booking rejected: capacity exceeded")
		case apperr.CodeOf(err) == apperr.CodeValidation, apperr.CodeOf(err) == apperr.CodeNotFound:
			s.record(OutcomeInvalid)
		default:
			s.record(OutcomeFailed)
			s.logg.Error(ctx, "booking failed", err)
		}
		return model.Reservation{}, err
	}
	s.record(OutcomeAdmitted)
	s.logg.Info(s.logg.WithField(ctx, "reservation_id", created.ID), "booking admitted")
	s.notifyConfirmed(ctx, restaurant, created)
	return created, nil
}

// admit holds the restaurant's lock only for the check-then-write; the
// confirmation is published after it is released.
func (s *Service) admit(ctx context.Context, actor model.Actor, req BookRequest, w Window) (model.Reservation, model.Restaurant, error) {
	unlock := s.locks.Lock(req.RestaurantID)
	defer unlock()

	var (
		created    model.Reservation
		restaurant model.Restaurant
	)
	err := s.store.Admit(ctx, req.RestaurantID, func(ctx context.Context, tx AdmissionTx) error {
		rest, err := tx.LockRestaurant(ctx, req.RestaurantID)
		if err != nil {
			return storeErr(err, "lock restaurant")
		}
		if err := ValidateSeats(req.Seats, rest.Capacity); err != nil {
			return err
		}
		existing, err := tx.ActiveInRange(ctx, rest.ID, w.Start, w.End)
		if err != nil {
			return storeErr(err, "load overlapping reservations")
		}
		overlap := EvaluateOverlap(w, existing)
		if err := CheckCapacity(rest.Capacity, req.Seats, overlap.Seats); err != nil {
			return err
		}
		r := model.Reservation{
			RestaurantID: rest.ID,
			UserID:       actor.UserID,
			StartAt:      w.Start,
			EndAt:        w.End,
			Seats:        req.Seats,
			Status:       model.StatusActive,
		}
		if err := tx.Insert(ctx, &r); err != nil {
			return storeErr(err, "insert reservation")
		}
		created, restaurant = r, rest
		return nil
	})
	return created, restaurant, err
}

// notifyConfirmed runs after commit; a failed publish never undoes a booking.
func (s *Service) notifyConfirmed(ctx context.Context, restaurant model.Restaurant, r model.Reservation) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.BookingConfirmed(nctx, restaurant, r); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "booking confirmation not published")
	}
}

// Get returns one reservation to its owner or an administrator.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uint64) (model.Reservation, error) {
	r, err := s.store.Reservation(ctx, id)
	if err != nil {
		return model.Reservation{}, storeErr(err, "load reservation")
	}
	if err := Authorize(actor, r); err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

// Cancel moves an ACTIVE reservation to CANCELLED, releasing its seats.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uint64) (model.Reservation, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := Transition(r, model.StatusCancelled, s.clock.Now()); err != nil {
		return model.Reservation{}, err
	}
	ok, err := s.store.UpdateStatus(ctx, id, model.StatusActive, model.StatusCancelled)
	if err != nil {
		return model.Reservation{}, storeErr(err, "cancel reservation")
	}
	current, err := s.store.Reservation(ctx, id)
	if err != nil {
		return model.Reservation{}, storeErr(err, "reload reservation")
	}
	if !ok {
		// The sweep or another request finished it first.
		if err := Transition(current, model.StatusCancelled, s.clock.Now()); err != nil {
			return model.Reservation{}, err
		}
		return model.Reservation{}, invalidTransition(current.Status, model.StatusCancelled, "reservation changed concurrently")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"reservation_id": id, "user_id": actor.UserID}), "reservation cancelled")
	return current, nil
}

// Delete removes a reservation record that is no longer ACTIVE.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uint64) error {
	r, err := s.store.Reservation(ctx, id)
	if err != nil {
		return storeErr(err, "load reservation")
	}
	if err := CanDelete(actor, r); err != nil {
		return err
	}
	ok, err := s.store.DeleteInactive(ctx, id)
	if err != nil {
		return storeErr(err, "delete reservation")
	}
	if !ok {
		return apperr.Wrap(apperr.CodeConflict, ErrInvalidTransition, "reservation changed concurrently")
	}
	return nil
}

// ListMine lists the caller's own reservations.
func (s *Service) ListMine(ctx context.Context, actor model.Actor, q ListQuery) (Page, error) {
	if actor.UserID == 0 {
		return Page{}, apperr.New(apperr.CodeUnauthorized, "authenticated user required")
	}
	q, err := q.Normalize()
	if err != nil {
		return Page{}, err
	}
	f := q.filter()
	f.UserID = &actor.UserID
	return s.list(ctx, q, f)
}

// ListAll lists every reservation; administrators only.
func (s *Service) ListAll(ctx context.Context, actor model.Actor, q ListQuery) (Page, error) {
	if !actor.IsAdmin() {
		return Page{}, apperr.Wrap(apperr.CodeForbidden, ErrForbidden, "administrator role required")
	}
	q, err := q.Normalize()
	if err != nil {
		return Page{}, err
	}
	return s.list(ctx, q, q.filter())
}

// ListForRestaurant lists a restaurant's reservations for its owner or an
// administrator.
func (s *Service) ListForRestaurant(ctx context.Context, actor model.Actor, restaurantID uint64, q ListQuery) (Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return Page{}, err
	}
	restaurant, err := s.store.Restaurant(ctx, restaurantID)
	if err != nil {
		return Page{}, storeErr(err, "load restaurant")
	}
	if !actor.IsAdmin() && (actor.UserID == 0 || restaurant.OwnerID != actor.UserID) {
		return Page{}, apperr.Wrap(apperr.CodeForbidden, ErrForbidden, "restaurant belongs to another owner")
	}
	f := q.filter()
	f.RestaurantID = &restaurant.ID
	return s.list(ctx, q, f)
}

func (s *Service) list(ctx context.Context, q ListQuery, f Filter) (Page, error) {
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, storeErr(err, "list reservations")
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return Page{Items: items, Page: q.Page, Limit: q.Limit, Total: total}, nil
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordAdmission(outcome)
	}
}

// storeErr classifies an error from the store.  Already typed errors pass
// through; unknown ids become NOT_FOUND and everything else UNAVAILABLE.
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperr.As(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, ErrRestaurantNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "restaurant not found")
	case errors.Is(err, ErrReservationNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "reservation not found")
	case errors.Is(err, ErrUserNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "user account not found")
	}
	return apperr.Wrap(apperr.CodeUnavailable, err, op)
}
