package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/netresearch/dircache/internal/directory"
)

// Users implements directory.UserDirectory against a `users(id bigserial
// primary key, name text unique not null)` table.
type Users struct {
	pool   *pgxpool.Pool
	closed *int32 // shared with the owning Pool
}

// GetUserByName implements directory.UserDirectory.
func (u *Users) GetUserByName(ctx context.Context, name string) (*directory.User, error) {
	if err := checkClosed(u.closed); err != nil {
		return nil, err
	}

	const q = `SELECT id, name FROM users WHERE name = $1`

	var user directory.User
	err := u.pool.QueryRow(ctx, q, name).Scan(&user.ID, &user.Name)
	if err != nil {
		return nil, classify(err, "get user by name")
	}

	return &user, nil
}

// GetUserByID implements directory.UserDirectory.
func (u *Users) GetUserByID(ctx context.Context, id int64) (*directory.User, error) {
	if err := checkClosed(u.closed); err != nil {
		return nil, err
	}

	const q = `SELECT id, name FROM users WHERE id = $1`

	var user directory.User
	err := u.pool.QueryRow(ctx, q, id).Scan(&user.ID, &user.Name)
	if err != nil {
		return nil, classify(err, "get user by id")
	}

	return &user, nil
}

// AddUser implements directory.UserDirectory.
func (u *Users) AddUser(ctx context.Context, name string) (*directory.User, error) {
	if err := checkClosed(u.closed); err != nil {
		return nil, err
	}

	const q = `INSERT INTO users (name) VALUES ($1) RETURNING id`

	user := directory.User{Name: name}
	if err := u.pool.QueryRow(ctx, q, name).Scan(&user.ID); err != nil {
		return nil, classify(err, "add user")
	}

	log.Debug().Str("user", name).Int64("id", user.ID).Msg("directory: user created")

	return &user, nil
}

// RemoveUser implements directory.UserDirectory.
func (u *Users) RemoveUser(ctx context.Context, id int64) error {
	if err := checkClosed(u.closed); err != nil {
		return err
	}

	const q = `DELETE FROM users WHERE id = $1`

	if _, err := u.pool.Exec(ctx, q, id); err != nil {
		return classify(err, "remove user")
	}

	log.Debug().Int64("id", id).Msg("directory: user removed")

	return nil
}
