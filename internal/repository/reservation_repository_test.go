package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/reservation"
)

var (
	evening = time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	stamp   = time.Date(2025, 4, 30, 9, 0, 0, 0, time.UTC)
)

// at matches a time argument by instant rather than by representation.
type at time.Time

func (a at) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(time.Time(a))
}

func newMockRepo(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewReservationRepo(db), mock
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

var (
	restaurantCols  = []string{"id", "owner_id", "name", "location", "capacity", "created_at", "updated_at"}
	reservationCols = []string{"id", "restaurant_id", "user_id", "start_at", "end_at", "seats", "status", "reminded_at", "created_at", "updated_at"}
)

func restaurantRow(capacity int) *sqlmock.Rows {
	return sqlmock.NewRows(restaurantCols).AddRow(1, 50, "Trattoria", "Rome", capacity, stamp, stamp)
}

func reservationRow(id uint64, start time.Time, seats int) *sqlmock.Rows {
	return sqlmock.NewRows(reservationCols).
		AddRow(id, 1, 100, start, start.Add(time.Hour), seats, "ACTIVE", nil, stamp, stamp)
}

func TestAdmitLocksReadsInsertsAndCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	end := evening.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM restaurants r WHERE r.id = ? FOR UPDATE")).
		WithArgs(1).
		WillReturnRows(restaurantRow(10))
	mock.ExpectQuery(q("WHERE restaurant_id = ? AND status = 'ACTIVE' AND start_at < ? AND end_at > ?")+".*"+q("LOCK IN SHARE MODE")).
		WithArgs(1, at(end), at(evening)).
		WillReturnRows(reservationRow(7, evening.Add(-30*time.Minute), 4))
	mock.ExpectExec(q("INSERT INTO reservations (restaurant_id, user_id, start_at, end_at, seats, status)")).
		WithArgs(1, 100, at(evening), at(end), 2, "ACTIVE").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(q("FROM reservations WHERE id = ?")).
		WithArgs(42).
		WillReturnRows(reservationRow(42, evening, 2))
	mock.ExpectCommit()

	var created model.Reservation
	err := repo.Admit(context.Background(), 1, func(ctx context.Context, tx reservation.AdmissionTx) error {
		rest, err := tx.LockRestaurant(ctx, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 10, rest.Capacity)
		existing, err := tx.ActiveInRange(ctx, 1, evening, end)
		if err != nil {
			return err
		}
		assert.Len(t, existing, 1)
		created = model.Reservation{RestaurantID: 1, UserID: 100, StartAt: evening, EndAt: end, Seats: 2, Status: model.StatusActive}
		return tx.Insert(ctx, &created)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), created.ID)
	assert.Equal(t, stamp, created.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitRollsBackOnCapacityConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(1).WillReturnRows(restaurantRow(4))
	mock.ExpectRollback()

	err := repo.Admit(context.Background(), 1, func(ctx context.Context, tx reservation.AdmissionTx) error {
		if _, err := tx.LockRestaurant(ctx, 1); err != nil {
			return err
		}
		return reservation.ErrCapacityExceeded
	})
	require.ErrorIs(t, err, reservation.ErrCapacityExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitUnknownRestaurant(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(9).WillReturnRows(sqlmock.NewRows(restaurantCols))
	mock.ExpectRollback()

	err := repo.Admit(context.Background(), 9, func(ctx context.Context, tx reservation.AdmissionTx) error {
		_, err := tx.LockRestaurant(ctx, 9)
		return err
	})
	require.ErrorIs(t, err, reservation.ErrRestaurantNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitInsertForUnknownUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO reservations")).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails"})
	mock.ExpectRollback()

	err := repo.Admit(context.Background(), 1, func(ctx context.Context, tx reservation.AdmissionTx) error {
		r := model.Reservation{RestaurantID: 1, UserID: 555, StartAt: evening, EndAt: evening.Add(time.Hour), Seats: 2, Status: model.StatusActive}
		return tx.Insert(ctx, &r)
	})
	require.ErrorIs(t, err, reservation.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveInRangeIsHalfOpenAndUnlocked(t *testing.T) {
	repo, mock := newMockRepo(t)
	end := evening.Add(90 * time.Minute)

	// start_at < to AND end_at > from: a reservation ending exactly at from,
	// or starting exactly at to, is not returned.
	mock.ExpectQuery(q("status = 'ACTIVE' AND start_at < ? AND end_at > ? ORDER BY start_at, id")+"$").
		WithArgs(1, at(end), at(evening)).
		WillReturnRows(sqlmock.NewRows(reservationCols))

	got, err := repo.ActiveInRange(context.Background(), 1, evening, end)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(q("UPDATE reservations SET status = ? WHERE id = ? AND status = ?")).
		WithArgs("CANCELLED", 5, "ACTIVE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE reservations SET status = ? WHERE id = ? AND status = ?")).
		WithArgs("CANCELLED", 5, "ACTIVE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), 5, model.StatusActive, model.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.UpdateStatus(context.Background(), 5, model.StatusActive, model.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInactiveSparesActiveRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(q("DELETE FROM reservations WHERE id = ? AND status <> 'ACTIVE'")).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.DeleteInactive(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStatements(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := evening

	mock.ExpectQuery(q("SELECT DISTINCT restaurant_id FROM reservations WHERE status = 'ACTIVE' AND end_at <= ?")).
		WithArgs(at(now)).
		WillReturnRows(sqlmock.NewRows([]string{"restaurant_id"}).AddRow(1).AddRow(3))
	mock.ExpectExec(q("UPDATE reservations SET status = 'COMPLETED' WHERE restaurant_id = ? AND status = 'ACTIVE' AND end_at <= ?")).
		WithArgs(3, at(now)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	ids, err := repo.RestaurantsWithElapsed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, ids)

	n, err := repo.CompleteElapsed(context.Background(), 3, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueRemindersWindowIsInclusive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := evening
	until := now.Add(time.Hour)

	mock.ExpectQuery(q("WHERE res.status = 'ACTIVE' AND res.reminded_at IS NULL AND res.start_at >= ? AND res.start_at <= ?")).
		WithArgs(at(now), at(until)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "restaurant_id", "start_at", "email", "full_name", "name"}).
			AddRow(1, 1, now, "a@example.com", "Ana", "Trattoria").
			AddRow(2, 1, until, "b@example.com", "Bo", "Trattoria"))

	got, err := repo.DueReminders(context.Background(), now, until)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, now, got[0].StartAt)
	assert.Equal(t, until, got[1].StartAt)
	assert.Equal(t, "b@example.com", got[1].UserEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRemindedOnlyOnce(t *testing.T) {
	repo, mock := newMockRepo(t)
	sentAt := evening.Add(-time.Hour)

	stmt := q("UPDATE reservations SET reminded_at = ? WHERE id = ? AND reminded_at IS NULL")
	mock.ExpectExec(stmt).WithArgs(at(sentAt), 4).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs(at(sentAt), 4).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkReminded(context.Background(), 4, sentAt)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkReminded(context.Background(), 4, sentAt)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
