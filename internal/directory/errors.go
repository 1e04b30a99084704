package directory

import "errors"

// Error kinds the coherence layer branches on. Any error an adapter
// returns that is not one of these three is treated as an unclassified
// storage fault and propagated to the caller wrapped, never swallowed.
var (
	// ErrNotFound means the requested row is absent. Never treated as a
	// failure by the cache — it is translated to the public API's
	// sentinel return (0, "", or nil).
	ErrNotFound = errors.New("directory: not found")

	// ErrUniqueViolation means a create or membership-write collided
	// with an existing unique key. Manager.AddUserGroups treats this as
	// success: the desired state already holds. Manager.AddUser and
	// Manager.AddGroup return it to the caller, wrapped.
	ErrUniqueViolation = errors.New("directory: unique key violation")

	// ErrForeignKeyViolation means a membership write referenced a user
	// or group row that the cache believed existed but the directory no
	// longer has. Triggers the single cache-invalidate-and-retry in
	// Manager.AddUserGroups.
	ErrForeignKeyViolation = errors.New("directory: foreign key violation")
)
