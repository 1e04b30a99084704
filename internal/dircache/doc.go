// Package dircache implements the multi-index coherent cache that mirrors
// a users/groups/memberships directory (internal/directory).
//
// # Overview
//
// Six keyed, size- and TTL-bounded caches sit in front of the directory
// gateway: user name↔id, group name↔id, and the two membership
// projections (user → group names, group → user names). Manager is the
// single entry point; its orchestrated operations (AddUser, AddGroup,
// AddUserGroups, GetGroups, ...) keep all six indexes mutually consistent
// as entries are read through, written, evicted by size, or expired by
// TTL.
//
// # Coherence
//
// Each cache's eviction callback never mutates a sibling cache directly —
// it enqueues a closure onto Manager's internal event queue, drained by
// one dedicated goroutine started in New and stopped in Close. This keeps
// an eviction firing while an LRU's own lock is held from ever blocking
// on, or re-entering, another cache.
//
// Membership lists ((5) user→groups and (6) group→users) are immutable
// []string snapshots: every mutation builds a new slice and replaces the
// cache entry wholesale, serialized per key by a small striped lock
// (keylock.go) so two concurrent AddUserGroups calls for the same user
// never lose an update racing on the copy.
//
// # Not-configured mode
//
// New returns a Manager with configured == false when any of the three
// directory adapters in Config is nil. Every public method on such a
// Manager short-circuits to its not-found sentinel at the top, never
// touching a cache or starting the event-dispatch goroutine.
package dircache
