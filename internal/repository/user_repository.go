package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepo reads the identity provider's users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, full_name, role FROM users WHERE id = ? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.FullName, &role)
	if err != nil {
		return model.User{}, notFound(err, ErrUserNotFound)
	}
	u.Role = model.Role(role)
	return u, nil
}
