package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/reservation"
)

// RestaurantRepo reads the restaurant catalog.  Writes belong to the catalog
// service, so there are none here.
type RestaurantRepo struct {
	db *sql.DB
}

func NewRestaurantRepo(db *sql.DB) *RestaurantRepo { return &RestaurantRepo{db: db} }

const restaurantColumns = `r.id, r.owner_id, r.name, r.location, r.capacity, r.created_at, r.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(row rowScanner) (model.Restaurant, error) {
	var r model.Restaurant
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Location, &r.Capacity, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// GetByID loads a restaurant with its cuisines.  Unknown ids yield
// reservation.ErrRestaurantNotFound.
func (r *RestaurantRepo) GetByID(ctx context.Context, id uint64) (model.Restaurant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants r WHERE r.id = ?`, id)
	rest, err := scanRestaurant(row)
	if err != nil {
		return model.Restaurant{}, notFound(err, reservation.ErrRestaurantNotFound)
	}
	cuisines, err := r.cuisines(ctx, []uint64{id})
	if err != nil {
		return model.Restaurant{}, err
	}
	rest.Cuisines = cuisines[id]
	return rest, nil
}

// lockForAdmission reads the restaurant row with FOR UPDATE so concurrent
// admissions for the same restaurant queue behind this transaction.
func lockForAdmission(ctx context.Context, tx *sql.Tx, id uint64) (model.Restaurant, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants r WHERE r.id = ? FOR UPDATE`, id)
	rest, err := scanRestaurant(row)
	if err != nil {
		return model.Restaurant{}, notFound(err, reservation.ErrRestaurantNotFound)
	}
	return rest, nil
}

// RestaurantSearch filters the public restaurant listing.  Name and Location
// are case-insensitive substring matches; a restaurant matches Cuisines when
// it serves at least one of them.
type RestaurantSearch struct {
	Name     string
	Location string
	Cuisines []string
	Page     int
	Limit    int
}

func (q RestaurantSearch) where() (string, []any) {
	where := []string{}
	args := []any{}
	if s := strings.TrimSpace(q.Name); s != "" {
		where = append(where, `LOWER(r.name) LIKE ? ESCAPE '\\'`)
		args = append(args, containsPattern(s))
	}
	if s := strings.TrimSpace(q.Location); s != "" {
		where = append(where, `LOWER(r.location) LIKE ? ESCAPE '\\'`)
		args = append(args, containsPattern(s))
	}
	var cuisines []string
	for _, c := range q.Cuisines {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cuisines = append(cuisines, c)
		}
	}
	if len(cuisines) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM restaurant_cuisines rc
			JOIN cuisines cu ON cu.id = rc.cuisine_id
			WHERE rc.restaurant_id = r.id AND LOWER(cu.name) IN (`+placeholders(len(cuisines))+`))`)
		for _, c := range cuisines {
			args = append(args, c)
		}
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns user input into a lower-case substring LIKE pattern
// in which % and _ match only themselves.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// Search returns one page of matching restaurants and the total match count.
func (r *RestaurantRepo) Search(ctx context.Context, q RestaurantSearch) ([]model.Restaurant, int, error) {
	cond, args := q.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurants r WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + restaurantColumns + ` FROM restaurants r WHERE ` + cond + `
		ORDER BY r.name ASC, r.id ASC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(args, q.Limit, (q.Page-1)*q.Limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Restaurant, 0, q.Limit)
	ids := make([]uint64, 0, q.Limit)
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rest)
		ids = append(ids, rest.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	cuisines, err := r.cuisines(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Cuisines = cuisines[out[i].ID]
	}
	return out, total, nil
}

func (r *RestaurantRepo) cuisines(ctx context.Context, ids []uint64) (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT rc.restaurant_id, cu.name
		FROM restaurant_cuisines rc
		JOIN cuisines cu ON cu.id = rc.cuisine_id
		WHERE rc.restaurant_id IN (`+placeholders(len(ids))+`)
		ORDER BY cu.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
