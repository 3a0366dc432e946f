package reservation

import (
	"context"
	"fmt"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

const slotsPerDay = 24

// AvailabilityQuery asks about one restaurant.  Time selects a point query;
// an empty Time asks for the hourly day scan.  Zero Seats and Duration fall
// back to 1 seat and DefaultDuration, and an empty Date means today in the
// service time zone.
type AvailabilityQuery struct {
	RestaurantID uint64
	Date         string
	Time         string
	Seats        int
	Duration     int
}

// PointAvailability answers "is there room at Time for Seats".
type PointAvailability struct {
	RestaurantID   uint64 `json:"restaurant_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Duration       int    `json:"duration"`
	Seats          int    `json:"seats"`
	Capacity       int    `json:"capacity"`
	AvailableSeats int    `json:"available_seats"`
	IsAvailable    bool   `json:"is_available"`
}

// Slot is one hour-aligned entry of a day scan.
type Slot struct {
	Slot           string `json:"slot"`
	AvailableSeats int    `json:"available_seats"`
	IsAvailable    bool   `json:"is_available"`
}

type DayAvailability struct {
	RestaurantID uint64 `json:"restaurant_id"`
	Date         string `json:"date"`
	Duration     int    `json:"duration"`
	Seats        int    `json:"seats"`
	Capacity     int    `json:"capacity"`
	Slots        []Slot `json:"slots"`
}

func (s *Service) withDefaults(q AvailabilityQuery) (AvailabilityQuery, error) {
	if q.Seats == 0 {
		q.Seats = 1
	}
	if q.Duration == 0 {
		q.Duration = DefaultDuration
	}
	if q.Date == "" {
		q.Date = s.clock.Now().In(s.loc).Format(dateLayout)
	}
	if q.Seats < 1 {
		return q, apperr.Wrap(apperr.CodeValidation, ErrInvalidSeats, "seats must be at least 1").
			WithDetails(map[string]int{"seats": q.Seats})
	}
	return q, ValidateDuration(q.Duration)
}

// Availability answers a point query.  It takes no locks and reserves
// nothing; a true answer holds until a concurrent booking takes the seats.
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (PointAvailability, error) {
	q, err := s.withDefaults(q)
	if err != nil {
		return PointAvailability{}, err
	}
	w, err := NewWindow(q.Date, q.Time, q.Duration, s.loc)
	if err != nil {
		return PointAvailability{}, err
	}
	restaurant, err := s.store.Restaurant(ctx, q.RestaurantID)
	if err != nil {
		return PointAvailability{}, storeErr(err, "load restaurant")
	}
	existing, err := s.store.ActiveInRange(ctx, restaurant.ID, w.Start, w.End)
	if err != nil {
		return PointAvailability{}, storeErr(err, "load reservations")
	}
	slot := assess(restaurant, w, q.Seats, existing)
	return PointAvailability{
		RestaurantID:   restaurant.ID,
		Date:           q.Date,
		Time:           q.Time,
		Duration:       q.Duration,
		Seats:          q.Seats,
		Capacity:       restaurant.Capacity,
		AvailableSeats: slot.AvailableSeats,
		IsAvailable:    slot.IsAvailable,
	}, nil
}

// DayAvailability evaluates the point query at every full hour of the date.
// Reservations are fetched once for the span covering all 24 windows and
// each slot is judged by the same predicate as admission.
func (s *Service) DayAvailability(ctx context.Context, q AvailabilityQuery) (DayAvailability, error) {
	q, err := s.withDefaults(q)
	if err != nil {
		return DayAvailability{}, err
	}
	windows := make([]Window, slotsPerDay)
	labels := make([]string, slotsPerDay)
	for h := 0; h < slotsPerDay; h++ {
		labels[h] = fmt.Sprintf("%02d:00", h)
		if windows[h], err = NewWindow(q.Date, labels[h], q.Duration, s.loc); err != nil {
			return DayAvailability{}, err
		}
	}
	restaurant, err := s.store.Restaurant(ctx, q.RestaurantID)
	if err != nil {
		return DayAvailability{}, storeErr(err, "load restaurant")
	}
	existing, err := s.store.ActiveInRange(ctx, restaurant.ID, windows[0].Start, windows[slotsPerDay-1].End)
	if err != nil {
		return DayAvailability{}, storeErr(err, "load reservations")
	}

	out := DayAvailability{
		RestaurantID: restaurant.ID,
		Date:         q.Date,
		Duration:     q.Duration,
		Seats:        q.Seats,
		Capacity:     restaurant.Capacity,
		Slots:        make([]Slot, 0, slotsPerDay),
	}
	for h, w := range windows {
		slot := assess(restaurant, w, q.Seats, existing)
		slot.Slot = labels[h]
		out.Slots = append(out.Slots, slot)
	}
	return out, nil
}

func assess(restaurant model.Restaurant, w Window, seats int, existing []model.Reservation) Slot {
	overlap := EvaluateOverlap(w, existing)
	return Slot{
		AvailableSeats: restaurant.Capacity - overlap.Seats,
		IsAvailable:    Fits(restaurant.Capacity, seats, overlap.Seats),
	}
}
