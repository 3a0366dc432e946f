package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/reservation"
)

// ReservationRepo persists reservations in MySQL.  It implements
// reservation.Store for the engine and the bulk statements the sweep jobs
// run.  All timestamps are stored and returned in UTC.
type ReservationRepo struct {
	db          *sql.DB
	restaurants *RestaurantRepo
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, restaurants: NewRestaurantRepo(db)}
}

var _ reservation.Store = (*ReservationRepo)(nil)

const reservationColumns = `id, restaurant_id, user_id, start_at, end_at, seats, status, reminded_at, created_at, updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		r        model.Reservation
		status   string
		reminded sql.NullTime
	)
	err := row.Scan(&r.ID, &r.RestaurantID, &r.UserID, &r.StartAt, &r.EndAt, &r.Seats, &status, &reminded, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.Status(status)
	if reminded.Valid {
		t := reminded.Time.UTC()
		r.RemindedAt = &t
	}
	r.StartAt, r.EndAt = r.StartAt.UTC(), r.EndAt.UTC()
	return r, nil
}

func (r *ReservationRepo) Restaurant(ctx context.Context, id uint64) (model.Restaurant, error) {
	return r.restaurants.GetByID(ctx, id)
}

// ActiveInRange returns ACTIVE reservations of a restaurant whose window
// intersects [from, to).
func (r *ReservationRepo) ActiveInRange(ctx context.Context, restaurantID uint64, from, to time.Time) ([]model.Reservation, error) {
	return activeInRange(ctx, r.db, restaurantID, from, to, "")
}

func activeInRange(ctx context.Context, q queryer, restaurantID uint64, from, to time.Time, lockClause string) ([]model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE restaurant_id = ? AND status = 'ACTIVE' AND start_at < ? AND end_at > ?
		ORDER BY start_at, id` + lockClause
	rows, err := q.QueryContext(ctx, query, restaurantID, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Admit opens a transaction, hands fn a view bound to it and commits only if
// fn succeeds.  fn is expected to call LockRestaurant first; the row lock is
// what serializes admissions for one restaurant across API instances.
func (r *ReservationRepo) Admit(ctx context.Context, restaurantID uint64, fn func(ctx context.Context, tx reservation.AdmissionTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin admission tx: %w", err)
	}
	committed := false
	defer rollback(tx, &committed)

	if err := fn(ctx, &admissionTx{tx: tx, restaurantID: restaurantID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}
	committed = true
	return nil
}

type admissionTx struct {
	tx           *sql.Tx
	restaurantID uint64
}

func (a *admissionTx) LockRestaurant(ctx context.Context, id uint64) (model.Restaurant, error) {
	if id != a.restaurantID {
		return model.Restaurant{}, fmt.Errorf("admission for restaurant %d cannot lock restaurant %d", a.restaurantID, id)
	}
	return lockForAdmission(ctx, a.tx, id)
}

// ActiveInRange uses a locking read so it sees rows committed by admissions
// that held the restaurant lock before this one.
func (a *admissionTx) ActiveInRange(ctx context.Context, restaurantID uint64, from, to time.Time) ([]model.Reservation, error) {
	return activeInRange(ctx, a.tx, restaurantID, from, to, " LOCK IN SHARE MODE")
}

// Insert creates the reservation and reads it back so generated columns are
// populated on r.
func (a *admissionTx) Insert(ctx context.Context, r *model.Reservation) error {
	const q = `INSERT INTO reservations (restaurant_id, user_id, start_at, end_at, seats, status) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := a.tx.ExecContext(ctx, q, r.RestaurantID, r.UserID, r.StartAt.UTC(), r.EndAt.UTC(), r.Seats, string(r.Status))
	if err != nil {
		// The restaurant row is already locked, so a missing parent is the user.
		if isMissingParent(err) {
			return reservation.ErrUserNotFound
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	row := a.tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	created, err := scanReservation(row)
	if err != nil {
		return err
	}
	*r = created
	return nil
}

// Reservation fetches one reservation by id.
func (r *ReservationRepo) Reservation(ctx context.Context, id uint64) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, notFound(err, reservation.ErrReservationNotFound)
	}
	return res, nil
}

func listWhere(f reservation.Filter) (string, []any) {
	where := []string{}
	args := []any{}
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.RestaurantID != nil {
		where = append(where, "restaurant_id = ?")
		args = append(args, *f.RestaurantID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.From != nil {
		where = append(where, "start_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "start_at < ?")
		args = append(args, f.To.UTC())
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// List returns one page of reservations matching f, newest start first, and
// the total number of matches.
func (r *ReservationRepo) List(ctx context.Context, f reservation.Filter) ([]model.Reservation, int, error) {
	cond, args := listWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE `+cond+`
		ORDER BY start_at DESC, id DESC
		LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Reservation, 0, f.Limit)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateStatus is a conditional single-row transition.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteInactive removes a reservation unless it is still ACTIVE.
func (r *ReservationRepo) DeleteInactive(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ? AND status <> 'ACTIVE'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RestaurantsWithElapsed lists restaurants that own at least one ACTIVE
// reservation ending at or before now.
func (r *ReservationRepo) RestaurantsWithElapsed(ctx context.Context, now time.Time) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT restaurant_id FROM reservations WHERE status = 'ACTIVE' AND end_at <= ? ORDER BY restaurant_id`,
		now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompleteElapsed marks one restaurant's elapsed ACTIVE reservations as
// COMPLETED in a single conditional statement.  Running it again with the
// same now changes nothing.
func (r *ReservationRepo) CompleteElapsed(ctx context.Context, restaurantID uint64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = 'COMPLETED'
		 WHERE restaurant_id = ? AND status = 'ACTIVE' AND end_at <= ?`,
		restaurantID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DueReminders returns ACTIVE reservations starting within [from, to] that
// have not been reminded yet, joined with the data a reminder needs.
func (r *ReservationRepo) DueReminders(ctx context.Context, from, to time.Time) ([]model.ReminderTarget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT res.id, res.restaurant_id, res.start_at, u.email, u.full_name, rest.name
		FROM reservations res
		JOIN users u ON u.id = res.user_id
		JOIN restaurants rest ON rest.id = res.restaurant_id
		WHERE res.status = 'ACTIVE' AND res.reminded_at IS NULL
		  AND res.start_at >= ? AND res.start_at <= ?
		ORDER BY res.start_at, res.id`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReminderTarget
	for rows.Next() {
		var t model.ReminderTarget
		if err := rows.Scan(&t.ReservationID, &t.RestaurantID, &t.StartAt, &t.UserEmail, &t.UserName, &t.RestaurantName); err != nil {
			return nil, err
		}
		t.StartAt = t.StartAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkReminded stamps reminded_at once; false means another sweep got there
// first.
func (r *ReservationRepo) MarkReminded(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET reminded_at = ? WHERE id = ? AND reminded_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
