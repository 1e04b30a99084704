package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/netresearch/dircache/internal/directory"
)

// Memberships implements directory.MembershipDirectory against a
// `memberships(user_id bigint references users(id), group_id bigint
// references groups(id), primary key (user_id, group_id))` table.
type Memberships struct {
	pool   *pgxpool.Pool
	closed *int32 // shared with the owning Pool
}

type txContextKey struct{}

// WithTx attaches an already-open transaction to ctx so that a subsequent
// GetGroupsForUser call participates in it instead of opening its own
// (SPEC_FULL.md §4.3 nested/participating transaction semantics).
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// AddUserToGroups implements directory.MembershipDirectory. It runs as a
// single transaction with a savepoint per row: a row whose insert unique-
// violates is skipped (the membership already exists) without aborting
// the rows around it, while a row whose insert foreign-key-violates fails
// the whole unit of work.
func (m *Memberships) AddUserToGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	if err := checkClosed(m.closed); err != nil {
		return err
	}

	if len(groupIDs) == 0 {
		return nil
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return classify(err, "add user to groups")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO memberships (user_id, group_id) VALUES ($1, $2)`

	duplicate := false
	var fkViolations []int64

	for i, groupID := range groupIDs {
		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return classify(err, "add user to groups")
		}

		_, execErr := tx.Exec(ctx, q, userID, groupID)
		if execErr == nil {
			_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)
			continue
		}

		_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)

		switch classified := classify(execErr, "add user to groups"); {
		case errors.Is(classified, directory.ErrUniqueViolation):
			duplicate = true
		case errors.Is(classified, directory.ErrForeignKeyViolation):
			fkViolations = append(fkViolations, groupID)
		default:
			return classified
		}
	}

	if len(fkViolations) > 0 {
		return fmt.Errorf("add user to groups: groups %v: %w", fkViolations, directory.ErrForeignKeyViolation)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err, "add user to groups")
	}

	log.Debug().Int64("user_id", userID).Ints64("group_ids", groupIDs).Bool("duplicate", duplicate).
		Msg("directory: membership rows written")

	if duplicate {
		return fmt.Errorf("add user to groups: %w", directory.ErrUniqueViolation)
	}

	return nil
}

// RemoveUserFromGroup implements directory.MembershipDirectory.
func (m *Memberships) RemoveUserFromGroup(ctx context.Context, userID, groupID int64) error {
	if err := checkClosed(m.closed); err != nil {
		return err
	}

	const q = `DELETE FROM memberships WHERE user_id = $1 AND group_id = $2`

	if _, err := m.pool.Exec(ctx, q, userID, groupID); err != nil {
		return classify(err, "remove user from group")
	}

	return nil
}

// GetGroupsForUser implements directory.MembershipDirectory, participating
// in an already-active transaction carried via WithTx, or opening and
// committing its own otherwise.
func (m *Memberships) GetGroupsForUser(ctx context.Context, userID int64) ([]directory.Group, error) {
	if err := checkClosed(m.closed); err != nil {
		return nil, err
	}

	if tx, ok := txFromContext(ctx); ok {
		return m.queryGroupsForUser(ctx, tx, userID)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, classify(err, "get groups for user")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	groups, err := m.queryGroupsForUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, "get groups for user")
	}

	return groups, nil
}

func (m *Memberships) queryGroupsForUser(ctx context.Context, tx pgx.Tx, userID int64) ([]directory.Group, error) {
	const existsQ = `SELECT 1 FROM users WHERE id = $1`
	var one int
	if err := tx.QueryRow(ctx, existsQ, userID).Scan(&one); err != nil {
		return nil, classify(err, "get groups for user")
	}

	const q = `
		SELECT g.id, g.name
		FROM groups g
		JOIN memberships m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.id`

	rows, err := tx.Query(ctx, q, userID)
	if err != nil {
		return nil, classify(err, "get groups for user")
	}
	defer rows.Close()

	var groups []directory.Group
	for rows.Next() {
		var g directory.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, classify(err, "get groups for user")
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "get groups for user")
	}

	return groups, nil
}
