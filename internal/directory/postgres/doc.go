// Package postgres provides the only concrete implementation of the
// directory gateway interfaces (internal/directory) shipped by this
// module, backed by a PostgreSQL schema of three tables:
//
//	users(id bigserial primary key, name text unique not null)
//	groups(id bigserial primary key, name text unique not null)
//	memberships(user_id bigint references users(id),
//	            group_id bigint references groups(id),
//	            primary key (user_id, group_id))
//
// NewPool dials the database through pgxpool, retrying transient
// connection failures via internal/retry, and exposes Users, Groups and
// Memberships — each a thin adapter translating SQL rows and pgconn
// errors into the directory package's types and error sentinels. No
// query method here ever returns a *pgconn.PgError or pgx.ErrNoRows
// directly; classify in errors.go normalizes every failure path first.
//
// Memberships.GetGroupsForUser additionally supports nested transactions
// through WithTx, for callers that need the read to participate in a
// larger unit of work instead of opening its own.
package postgres
