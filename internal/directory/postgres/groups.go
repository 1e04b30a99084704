package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/netresearch/dircache/internal/directory"
)

// Groups implements directory.GroupDirectory against a `groups(id
// bigserial primary key, name text unique not null)` table.
type Groups struct {
	pool   *pgxpool.Pool
	closed *int32 // shared with the owning Pool
}

// GetGroupByName implements directory.GroupDirectory.
func (g *Groups) GetGroupByName(ctx context.Context, name string) (*directory.Group, error) {
	if err := checkClosed(g.closed); err != nil {
		return nil, err
	}

	const q = `SELECT id, name FROM groups WHERE name = $1`

	var group directory.Group
	err := g.pool.QueryRow(ctx, q, name).Scan(&group.ID, &group.Name)
	if err != nil {
		return nil, classify(err, "get group by name")
	}

	return &group, nil
}

// GetGroupByID implements directory.GroupDirectory.
func (g *Groups) GetGroupByID(ctx context.Context, id int64) (*directory.Group, error) {
	if err := checkClosed(g.closed); err != nil {
		return nil, err
	}

	const q = `SELECT id, name FROM groups WHERE id = $1`

	var group directory.Group
	err := g.pool.QueryRow(ctx, q, id).Scan(&group.ID, &group.Name)
	if err != nil {
		return nil, classify(err, "get group by id")
	}

	return &group, nil
}

// AddGroup implements directory.GroupDirectory.
func (g *Groups) AddGroup(ctx context.Context, name string) (*directory.Group, error) {
	if err := checkClosed(g.closed); err != nil {
		return nil, err
	}

	const q = `INSERT INTO groups (name) VALUES ($1) RETURNING id`

	group := directory.Group{Name: name}
	if err := g.pool.QueryRow(ctx, q, name).Scan(&group.ID); err != nil {
		return nil, classify(err, "add group")
	}

	log.Debug().Str("group", name).Int64("id", group.ID).Msg("directory: group created")

	return &group, nil
}

// RemoveGroup implements directory.GroupDirectory.
func (g *Groups) RemoveGroup(ctx context.Context, id int64) error {
	if err := checkClosed(g.closed); err != nil {
		return err
	}

	const q = `DELETE FROM groups WHERE id = $1`

	if _, err := g.pool.Exec(ctx, q, id); err != nil {
		return classify(err, "remove group")
	}

	log.Debug().Int64("id", id).Msg("directory: group removed")

	return nil
}
