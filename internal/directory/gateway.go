// Package directory defines the narrow, transactional interface through
// which the coherence layer (internal/dircache) reaches the persistent
// users-and-groups store. It never itself talks to a network or a disk —
// concrete adapters (internal/directory/postgres) implement these
// interfaces against a real backing store.
package directory

import "context"

// User is a directory-resident user: a positive id paired with a unique,
// non-empty name. The zero value is never a real user — id 0 is reserved
// as the "unknown" sentinel throughout this module.
type User struct {
	ID   int64
	Name string
}

// Group mirrors User in a disjoint namespace.
type Group struct {
	ID   int64
	Name string
}

// UserDirectory is the subset of directory operations touching the users
// relation. A nil UserDirectory at construction puts the whole cache into
// not-configured mode (SPEC_FULL.md §4.4).
type UserDirectory interface {
	// GetUserByName returns ErrNotFound if no user has that name.
	GetUserByName(ctx context.Context, name string) (*User, error)
	// GetUserByID returns ErrNotFound if no user has that id.
	GetUserByID(ctx context.Context, id int64) (*User, error)
	// AddUser creates a user, or returns ErrUniqueViolation if the name
	// is already taken.
	AddUser(ctx context.Context, name string) (*User, error)
	// RemoveUser deletes a user by id. Removing a user that does not
	// exist is not an error.
	RemoveUser(ctx context.Context, id int64) error
}

// GroupDirectory mirrors UserDirectory for the groups relation.
type GroupDirectory interface {
	GetGroupByName(ctx context.Context, name string) (*Group, error)
	GetGroupByID(ctx context.Context, id int64) (*Group, error)
	AddGroup(ctx context.Context, name string) (*Group, error)
	RemoveGroup(ctx context.Context, id int64) error
}

// MembershipDirectory is the many-to-many users↔groups relation.
type MembershipDirectory interface {
	// AddUserToGroups writes one membership row per groupID as a single
	// unit of work. Returns ErrForeignKeyViolation if userID or any
	// groupID no longer exists, or ErrUniqueViolation if any row already
	// existed (the rows that did not exist are still written).
	AddUserToGroups(ctx context.Context, userID int64, groupIDs []int64) error
	// RemoveUserFromGroup deletes one membership row. Removing a row
	// that doesn't exist is not an error.
	RemoveUserFromGroup(ctx context.Context, userID, groupID int64) error
	// GetGroupsForUser returns every group userID belongs to, or
	// ErrNotFound if userID itself does not exist.
	GetGroupsForUser(ctx context.Context, userID int64) ([]Group, error)
}
