package reservation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

var (
	customer = model.Actor{UserID: 100, Role: model.RoleCustomer}
	stranger = model.Actor{UserID: 200, Role: model.RoleCustomer}
	admin    = model.Actor{UserID: 1, Role: model.RoleAdmin}
	owner    = model.Actor{UserID: 50, Role: model.RoleOwner}
)

type fixture struct {
	svc      *Service
	store    *memStore
	notifier *recordingNotifier
	recorder *countingRecorder
	now      time.Time
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(model.Restaurant{ID: 1, OwnerID: owner.UserID, Name: "Trattoria", Capacity: capacity}),
		notifier: &recordingNotifier{},
		recorder: &countingRecorder{},
		now:      time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.now = func() time.Time { return f.now }
	svc, err := NewService(ServiceParams{
		Store:    f.store,
		Logger:   logger.Nop(),
		Clock:    ClockFunc(func() time.Time { return f.now }),
		Notifier: f.notifier,
		Recorder: f.recorder,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) book(actor model.Actor, hhmm string, duration, seats int) (model.Reservation, error) {
	return f.svc.Book(context.Background(), actor, BookRequest{
		RestaurantID: 1, Date: "2025-05-01", Time: hhmm, Duration: duration, Seats: seats,
	})
}

func TestScenarioCapacityAdmission(t *testing.T) {
	f := newFixture(t, 10)

	first, err := f.book(customer, "18:00", 60, 6)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, first.Status)
	assert.Equal(t, time.Date(2025, 5, 1, 19, 0, 0, 0, time.UTC), first.EndAt)

	_, err = f.book(customer, "18:30", 60, 5)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	third, err := f.book(customer, "19:30", 30, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, third.Seats)

	assert.Len(t, f.store.snapshot(), 2, "rejected booking leaves no row")
	assert.Equal(t, 2, f.recorder.counts[OutcomeAdmitted])
	assert.Equal(t, 1, f.recorder.counts[OutcomeRejected])
	assert.Len(t, f.notifier.calls, 2, "only admitted bookings are confirmed")
}

func TestBookingBoundaryIsExclusive(t *testing.T) {
	f := newFixture(t, 4)

	_, err := f.book(customer, "17:00", 60, 4)
	require.NoError(t, err)
	_, err = f.book(customer, "18:00", 60, 4)
	require.NoError(t, err, "a window starting when another ends does not overlap it")
}

func TestCancelledSeatsAreReleased(t *testing.T) {
	f := newFixture(t, 4)

	r, err := f.book(customer, "18:00", 60, 4)
	require.NoError(t, err)
	_, err = f.book(stranger, "18:00", 60, 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = f.svc.Cancel(context.Background(), customer, r.ID)
	require.NoError(t, err)

	_, err = f.book(stranger, "18:00", 60, 4)
	require.NoError(t, err)
}

func TestScenarioCompletedCannotBeCancelled(t *testing.T) {
	f := newFixture(t, 10)
	r, err := f.book(customer, "18:00", 60, 2)
	require.NoError(t, err)

	f.now = time.Date(2025, 5, 1, 19, 1, 0, 0, time.UTC)
	require.Equal(t, 1, f.store.completeElapsed(f.now))

	got, err := f.svc.Get(context.Background(), customer, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	_, err = f.svc.Cancel(context.Background(), customer, r.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestBookValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t, 10)
	cases := []struct {
		name string
		req  BookRequest
		want error
	}{
		{"bad time", BookRequest{RestaurantID: 1, Date: "2025-05-01", Time: "25:00", Duration: 60, Seats: 1}, ErrInvalidTimeFormat},
		{"bad duration", BookRequest{RestaurantID: 1, Date: "2025-05-01", Time: "18:00", Duration: 241, Seats: 1}, ErrInvalidDuration},
		{"zero seats", BookRequest{RestaurantID: 1, Date: "2025-05-01", Time: "18:00", Duration: 60, Seats: 0}, ErrInvalidSeats},
		{"over capacity", BookRequest{RestaurantID: 1, Date: "2025-05-01", Time: "18:00", Duration: 60, Seats: 11}, ErrInvalidSeats},
		{"in the past", BookRequest{RestaurantID: 1, Date: "2025-05-01", Time: "11:00", Duration: 60, Seats: 1}, ErrInvalidDate},
		{"unknown restaurant", BookRequest{RestaurantID: 9, Date: "2025-05-01", Time: "18:00", Duration: 60, Seats: 1}, ErrRestaurantNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), customer, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.store.snapshot())

	_, err := f.svc.Book(context.Background(), model.Actor{}, cases[0].req)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestBookStoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t, 10)
	f.store.failInsert = errors.New("connection reset")

	_, err := f.book(customer, "18:00", 60, 2)
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
	assert.Equal(t, 1, f.recorder.counts[OutcomeFailed])
}

func TestBookUnknownUserIsNotFound(t *testing.T) {
	f := newFixture(t, 10)
	f.store.failInsert = ErrUserNotFound

	_, err := f.book(customer, "18:00", 60, 2)
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, 1, f.recorder.counts[OutcomeInvalid])
}

func TestNotifierFailureKeepsBooking(t *testing.T) {
	f := newFixture(t, 10)
	f.notifier.err = errors.New("broker down")

	r, err := f.book(customer, "18:00", 60, 2)
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Len(t, f.store.snapshot(), 1)
}

// gatedNotifier blocks every confirmation until release is closed.
type gatedNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (n *gatedNotifier) BookingConfirmed(ctx context.Context, _ model.Restaurant, _ model.Reservation) error {
	n.entered <- struct{}{}
	select {
	case <-n.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSlowConfirmationDoesNotBlockAdmissions(t *testing.T) {
	f := newFixture(t, 10)
	gate := &gatedNotifier{entered: make(chan struct{}, 4), release: make(chan struct{})}
	f.svc.notifier = gate
	defer close(gate.release)

	first := make(chan error, 1)
	go func() {
		_, err := f.book(customer, "18:00", 60, 2)
		first <- err
	}()
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first booking never reached the notifier")
	}

	// The first booking is parked in its confirmation; a second, non-overlapping
	// booking on the same restaurant must still be admitted.
	second := make(chan error, 1)
	go func() {
		_, err := f.book(customer, "20:00", 60, 2)
		second <- err
	}()
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("second booking waited on the first confirmation")
	}
	assert.Len(t, f.store.snapshot(), 2)

	gate.release <- struct{}{}
	gate.release <- struct{}{}
	require.NoError(t, <-first)
	require.NoError(t, <-second)
}

// Random concurrent bookings must never push any instant over capacity.
func TestConcurrentBookingsNeverOverbook(t *testing.T) {
	const capacity = 8
	f := newFixture(t, capacity)
	rng := rand.New(rand.NewSource(7))

	type attempt struct {
		hhmm     string
		duration int
		seats    int
	}
	attempts := make([]attempt, 200)
	for i := range attempts {
		attempts[i] = attempt{
			hhmm:     fmt.Sprintf("%02d:%02d", 17+rng.Intn(4), rng.Intn(4)*15),
			duration: 15 + rng.Intn(8)*15,
			seats:    1 + rng.Intn(4),
		}
	}

	var wg sync.WaitGroup
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			_, err := f.book(customer, a.hhmm, a.duration, a.seats)
			if err != nil && !errors.Is(err, ErrCapacityExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		}(a)
	}
	wg.Wait()

	all := f.store.snapshot()
	require.NotEmpty(t, all)
	// Seat load only changes at a start instant, so checking every start
	// covers every instant.
	for _, probe := range all {
		load := 0
		for _, r := range all {
			if r.Status == model.StatusActive && !r.StartAt.After(probe.StartAt) && r.EndAt.After(probe.StartAt) {
				load += r.Seats
			}
		}
		require.LessOrEqual(t, load, capacity, "overbooked at %s", probe.StartAt)
	}
}

func TestDayScanMatchesPointQuery(t *testing.T) {
	f := newFixture(t, 6)
	_, err := f.book(customer, "18:00", 90, 4)
	require.NoError(t, err)
	_, err = f.book(stranger, "20:30", 60, 2)
	require.NoError(t, err)
	_, err = f.book(stranger, "23:30", 30, 6)
	require.NoError(t, err)

	ctx := context.Background()
	for _, seats := range []int{1, 2, 3, 6} {
		day, err := f.svc.DayAvailability(ctx, AvailabilityQuery{RestaurantID: 1, Date: "2025-05-01", Duration: 120, Seats: seats})
		require.NoError(t, err)
		require.Len(t, day.Slots, 24)
		for h, slot := range day.Slots {
			assert.Equal(t, fmt.Sprintf("%02d:00", h), slot.Slot)
			point, err := f.svc.Availability(ctx, AvailabilityQuery{
				RestaurantID: 1, Date: "2025-05-01", Time: slot.Slot, Duration: 120, Seats: seats,
			})
			require.NoError(t, err)
			assert.Equal(t, point.AvailableSeats, slot.AvailableSeats, "slot %s seats %d", slot.Slot, seats)
			assert.Equal(t, point.IsAvailable, slot.IsAvailable, "slot %s seats %d", slot.Slot, seats)
		}
	}
}

func TestAvailabilityAgreesWithAdmission(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.book(customer, "18:00", 60, 6)
	require.NoError(t, err)

	ctx := context.Background()
	point, err := f.svc.Availability(ctx, AvailabilityQuery{RestaurantID: 1, Date: "2025-05-01", Time: "18:30", Seats: 5})
	require.NoError(t, err)
	assert.Equal(t, 4, point.AvailableSeats)
	assert.False(t, point.IsAvailable)
	assert.Equal(t, DefaultDuration, point.Duration)

	point, err = f.svc.Availability(ctx, AvailabilityQuery{RestaurantID: 1, Date: "2025-05-01", Time: "18:30", Seats: 4})
	require.NoError(t, err)
	require.True(t, point.IsAvailable)
	_, err = f.book(stranger, "18:30", 60, 4)
	require.NoError(t, err, "a slot reported available is bookable")
}

func TestAvailabilityDefaults(t *testing.T) {
	f := newFixture(t, 3)
	day, err := f.svc.DayAvailability(context.Background(), AvailabilityQuery{RestaurantID: 1})
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", day.Date, "date defaults to today")
	assert.Equal(t, 1, day.Seats)
	assert.Equal(t, DefaultDuration, day.Duration)
	for _, s := range day.Slots {
		assert.Equal(t, 3, s.AvailableSeats)
		assert.True(t, s.IsAvailable)
	}

	_, err = f.svc.Availability(context.Background(), AvailabilityQuery{RestaurantID: 9, Time: "10:00"})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	_, err = f.svc.Availability(context.Background(), AvailabilityQuery{RestaurantID: 1, Time: "10:00", Seats: -1})
	require.ErrorIs(t, err, ErrInvalidSeats)
}

func TestGetAndCancelAuthorization(t *testing.T) {
	f := newFixture(t, 10)
	r, err := f.book(customer, "18:00", 60, 2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.Get(ctx, stranger, r.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Cancel(ctx, stranger, r.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Get(ctx, customer, 999)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	cancelled, err := f.svc.Cancel(ctx, admin, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, customer, r.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteRequiresInactive(t *testing.T) {
	f := newFixture(t, 10)
	r, err := f.book(customer, "18:00", 60, 2)
	require.NoError(t, err)
	ctx := context.Background()

	err = f.svc.Delete(ctx, customer, r.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, f.store.snapshot(), 1)

	_, err = f.svc.Cancel(ctx, customer, r.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(ctx, stranger, r.ID), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, customer, r.ID))
	assert.Empty(t, f.store.snapshot())
}

func TestListings(t *testing.T) {
	f := newFixture(t, 20)
	for i := 0; i < 5; i++ {
		_, err := f.book(customer, fmt.Sprintf("%02d:00", 13+i), 60, 1)
		require.NoError(t, err)
	}
	_, err := f.book(stranger, "18:00", 60, 1)
	require.NoError(t, err)
	ctx := context.Background()

	page, err := f.svc.ListMine(ctx, customer, ListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 2)
	for _, r := range page.Items {
		assert.Equal(t, customer.UserID, r.UserID)
	}

	_, err = f.svc.ListAll(ctx, customer, ListQuery{})
	require.ErrorIs(t, err, ErrForbidden)
	all, err := f.svc.ListAll(ctx, admin, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 6, all.Total)

	_, err = f.svc.ListForRestaurant(ctx, stranger, 1, ListQuery{})
	require.ErrorIs(t, err, ErrForbidden)
	byOwner, err := f.svc.ListForRestaurant(ctx, owner, 1, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 6, byOwner.Total)

	cancelled := model.StatusCancelled
	none, err := f.svc.ListMine(ctx, customer, ListQuery{Status: &cancelled})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.NotNil(t, none.Items)

	otherDay := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	none, err = f.svc.ListMine(ctx, customer, ListQuery{Date: &otherDay})
	require.NoError(t, err)
	assert.Zero(t, none.Total)

	_, err = f.svc.ListMine(ctx, customer, ListQuery{Limit: 500})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}
