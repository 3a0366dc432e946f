package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

func at(h, m int) time.Time { return time.Date(2025, 5, 1, h, m, 0, 0, time.UTC) }

func res(id uint64, start, end time.Time, seats int, status model.Status) model.Reservation {
	return model.Reservation{ID: id, RestaurantID: 1, UserID: 100, StartAt: start, EndAt: end, Seats: seats, Status: status}
}

func TestEvaluateOverlap(t *testing.T) {
	w := Window{Start: at(18, 0), End: at(19, 0)}
	existing := []model.Reservation{
		res(1, at(17, 0), at(18, 0), 3, model.StatusActive),    // touches start
		res(2, at(19, 0), at(20, 0), 3, model.StatusActive),    // touches end
		res(3, at(18, 30), at(19, 30), 2, model.StatusActive),  // overlaps
		res(4, at(17, 30), at(18, 15), 4, model.StatusActive),  // overlaps
		res(5, at(18, 0), at(19, 0), 9, model.StatusCancelled), // ignored
		res(6, at(18, 0), at(19, 0), 9, model.StatusCompleted), // ignored
	}

	got := EvaluateOverlap(w, existing)

	assert.Equal(t, 6, got.Seats)
	require.Len(t, got.Reservations, 2)
	assert.Equal(t, uint64(3), got.Reservations[0].ID)
	assert.Equal(t, uint64(4), got.Reservations[1].ID)
}

func TestEvaluateOverlapEmpty(t *testing.T) {
	got := EvaluateOverlap(Window{Start: at(18, 0), End: at(19, 0)}, nil)
	assert.Zero(t, got.Seats)
	assert.Empty(t, got.Reservations)
}

func TestCheckCapacity(t *testing.T) {
	require.NoError(t, CheckCapacity(10, 4, 6))
	require.NoError(t, CheckCapacity(10, 10, 0))

	err := CheckCapacity(10, 5, 6)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	assert.Equal(t, 4, apperr.As(err).Details().(map[string]int)["available_seats"])
}

func TestValidateSeats(t *testing.T) {
	require.NoError(t, ValidateSeats(1, 10))
	require.NoError(t, ValidateSeats(10, 10))
	require.ErrorIs(t, ValidateSeats(0, 10), ErrInvalidSeats)
	require.ErrorIs(t, ValidateSeats(11, 10), ErrInvalidSeats)
	require.NoError(t, ValidateSeats(500, 0), "unknown capacity only checks the lower bound")
}

func TestTransition(t *testing.T) {
	active := res(1, at(18, 0), at(19, 0), 2, model.StatusActive)

	require.NoError(t, Transition(active, model.StatusCancelled, at(12, 0)))
	require.NoError(t, Transition(active, model.StatusCompleted, at(19, 0)), "completion allowed at end")
	require.ErrorIs(t, Transition(active, model.StatusCompleted, at(18, 59)), ErrInvalidTransition)
	require.ErrorIs(t, Transition(active, model.StatusActive, at(12, 0)), ErrInvalidTransition)

	for _, terminal := range []model.Status{model.StatusCancelled, model.StatusCompleted} {
		r := active
		r.Status = terminal
		for _, to := range []model.Status{model.StatusCancelled, model.StatusCompleted, model.StatusActive} {
			err := Transition(r, to, at(20, 0))
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", terminal, to)
			assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
		}
	}
}

func TestAuthorize(t *testing.T) {
	r := res(1, at(18, 0), at(19, 0), 2, model.StatusActive)

	require.NoError(t, Authorize(model.Actor{UserID: 100, Role: model.RoleCustomer}, r))
	require.NoError(t, Authorize(model.Actor{UserID: 7, Role: model.RoleAdmin}, r))

	err := Authorize(model.Actor{UserID: 7, Role: model.RoleOwner}, r)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	require.ErrorIs(t, Authorize(model.Actor{}, model.Reservation{}), ErrForbidden)
}

func TestCanDelete(t *testing.T) {
	owner := model.Actor{UserID: 100, Role: model.RoleCustomer}
	active := res(1, at(18, 0), at(19, 0), 2, model.StatusActive)
	cancelled := active
	cancelled.Status = model.StatusCancelled

	require.ErrorIs(t, CanDelete(owner, active), ErrInvalidTransition)
	require.NoError(t, CanDelete(owner, cancelled))
	require.ErrorIs(t, CanDelete(model.Actor{UserID: 5, Role: model.RoleCustomer}, cancelled), ErrForbidden)
}

func TestListQueryNormalize(t *testing.T) {
	q, err := ListQuery{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultLimit, q.Limit)

	q, err = ListQuery{Page: 3, Limit: 20}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 40, q.Offset())

	bogus := model.Status("PENDING")
	_, err = ListQuery{Page: -1, Limit: MaxLimit + 1, Status: &bogus}.Normalize()
	require.ErrorIs(t, err, ErrInvalidQuery)
	details := apperr.As(err).Details().(map[string]string)
	assert.Contains(t, details, "page")
	assert.Contains(t, details, "limit")
	assert.Contains(t, details, "status")
}

func TestListQueryDateFilterSpansOneDay(t *testing.T) {
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := ListQuery{Page: 1, Limit: 10, Date: &day}.filter()
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, day, *f.From)
	assert.Equal(t, day.Add(24*time.Hour), *f.To)
}
