// Package directory provides the abstract gateway to the persistent
// users-and-groups store that internal/dircache mirrors and accelerates.
//
// # Overview
//
// This package never opens a socket or a file. It defines three narrow
// interfaces — UserDirectory, GroupDirectory, MembershipDirectory — and the
// three error kinds (ErrNotFound, ErrUniqueViolation,
// ErrForeignKeyViolation) the coherence layer needs to distinguish. A
// concrete backing store lives in a sibling package, such as
// internal/directory/postgres, and is wired in at construction time.
//
// # Not-configured mode
//
// internal/dircache.New treats a nil UserDirectory, GroupDirectory, or
// MembershipDirectory as "not configured": every public cache operation
// then returns its not-found sentinel without ever calling into this
// package or touching a cache entry. This lets a host application run
// with the cache compiled in but the backing store absent (e.g. in a
// degraded or offline deployment mode).
//
// # Error classification
//
// Adapters are expected to wrap the three sentinel errors with %w so
// errors.Is keeps working through the adapter's own context (e.g. "user
// %q: %w", name, ErrNotFound). Anything an adapter returns that doesn't
// match one of the three sentinels is an unclassified storage fault and
// is propagated to the cache's caller as-is, wrapped one more time by the
// coherence layer to note which operation failed.
package directory
