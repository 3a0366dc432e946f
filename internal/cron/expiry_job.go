package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/iliyamo/restaurant-reservation/internal/logger"
)

const expiryJobName = "reservation_expiry"

// ExpiryStore is the persistence the expiry job needs.
type ExpiryStore interface {
	RestaurantsWithElapsed(ctx context.Context, now time.Time) ([]uint64, error)
	CompleteElapsed(ctx context.Context, restaurantID uint64, now time.Time) (int64, error)
}

type completedCounter interface {
	AddCompleted(n int64)
}

// ExpiryJob moves ACTIVE reservations whose window has ended to COMPLETED,
// one restaurant at a time so no statement spans the whole table.
type ExpiryJob struct {
	store   ExpiryStore
	logg    *logger.Logger
	now     func() time.Time
	counter completedCounter
}

func NewExpiryJob(store ExpiryStore, logg *logger.Logger, now func() time.Time, counter completedCounter) *ExpiryJob {
	if now == nil {
		now = time.Now
	}
	return &ExpiryJob{store: store, logg: logg, now: now, counter: counter}
}

func (j *ExpiryJob) Name() string { return expiryJobName }

// Run completes every elapsed reservation.  A failure for one restaurant
// does not stop the others; all failures are returned together.
func (j *ExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	ids, err := j.store.RestaurantsWithElapsed(ctx, now)
	if err != nil {
		return fmt.Errorf("list restaurants with elapsed reservations: %w", err)
	}

	var errs error
	var total int64
	for _, id := range ids {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		n, err := j.store.CompleteElapsed(ctx, id, now)
		if err != nil {
			j.logg.Error(j.logg.WithRestaurantID(ctx, id), "complete elapsed reservations failed", err)
			errs = multierr.Append(errs, fmt.Errorf("restaurant %d: %w", id, err))
			continue
		}
		total += n
	}
	if j.counter != nil {
		j.counter.AddCompleted(total)
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "completed", total), "elapsed reservations completed")
	}
	return errs
}
