package postgres

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/netresearch/dircache/internal/directory"
)

// checkClosed reports ErrPoolClosed once the owning Pool's Close has run,
// so a query racing a concurrent Close observes the sentinel instead of
// reaching the torn-down pgxpool.Pool.
func checkClosed(closed *int32) error {
	if atomic.LoadInt32(closed) == 1 {
		return ErrPoolClosed
	}

	return nil
}

// PostgreSQL SQLSTATE codes this adapter classifies. See
// https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// classify maps a pgx/pgconn error onto one of the three directory error
// kinds, or wraps it as an unclassified storage fault if it matches none
// of them. op annotates the wrapped error with which gateway call failed,
// for observability.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, directory.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%s: %w", op, directory.ErrUniqueViolation)
		case sqlStateForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, directory.ErrForeignKeyViolation)
		}
	}

	return fmt.Errorf("%s: storage fault: %w", op, err)
}
