package reservation

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// memStore keeps state in memory.  Admit does not serialize anything by
// itself, so admission safety in these tests comes from the service's own
// keyed mutex.
type memStore struct {
	mu           sync.Mutex
	restaurants  map[uint64]model.Restaurant
	reservations map[uint64]model.Reservation
	nextID       uint64
	now          func() time.Time
	failInsert   error
}

func newMemStore(restaurants ...model.Restaurant) *memStore {
	s := &memStore{
		restaurants:  map[uint64]model.Restaurant{},
		reservations: map[uint64]model.Reservation{},
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, r := range restaurants {
		s.restaurants[r.ID] = r
	}
	return s
}

func (s *memStore) Restaurant(_ context.Context, id uint64) (model.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return model.Restaurant{}, ErrRestaurantNotFound
	}
	return r, nil
}

func (s *memStore) ActiveInRange(_ context.Context, restaurantID uint64, from, to time.Time) ([]model.Reservation, error) {
	runtime.Gosched()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.sorted() {
		if r.RestaurantID == restaurantID && r.Status == model.StatusActive && r.StartAt.Before(to) && r.EndAt.After(from) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Admit(ctx context.Context, restaurantID uint64, fn func(ctx context.Context, tx AdmissionTx) error) error {
	return fn(ctx, memTx{s})
}

func (s *memStore) Reservation(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

func (s *memStore) List(_ context.Context, f Filter) ([]model.Reservation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []model.Reservation
	for _, r := range s.sorted() {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.RestaurantID != nil && r.RestaurantID != *f.RestaurantID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.From != nil && r.StartAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !r.StartAt.Before(*f.To) {
			continue
		}
		matched = append(matched, r)
	}
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uint64, from, to model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = s.now()
	s.reservations[id] = r
	return true, nil
}

func (s *memStore) DeleteInactive(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status == model.StatusActive {
		return false, nil
	}
	delete(s.reservations, id)
	return true, nil
}

// completeElapsed mirrors the sweep's bulk update.
func (s *memStore) completeElapsed(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.reservations {
		if r.Status == model.StatusActive && !r.EndAt.After(now) {
			r.Status = model.StatusCompleted
			s.reservations[id] = r
			n++
		}
	}
	return n
}

func (s *memStore) snapshot() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

func (s *memStore) sorted() []model.Reservation {
	out := make([]model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct{ s *memStore }

func (t memTx) LockRestaurant(ctx context.Context, id uint64) (model.Restaurant, error) {
	return t.s.Restaurant(ctx, id)
}

func (t memTx) ActiveInRange(ctx context.Context, restaurantID uint64, from, to time.Time) ([]model.Reservation, error) {
	return t.s.ActiveInRange(ctx, restaurantID, from, to)
}

func (t memTx) Insert(_ context.Context, r *model.Reservation) error {
	runtime.Gosched()
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.failInsert != nil {
		return t.s.failInsert
	}
	t.s.nextID++
	r.ID = t.s.nextID
	r.CreatedAt = t.s.now()
	r.UpdatedAt = r.CreatedAt
	t.s.reservations[r.ID] = *r
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []model.Reservation
	err   error
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, _ model.Restaurant, r model.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, r)
	return n.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordAdmission(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[outcome]++
}
