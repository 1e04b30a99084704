package dircache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/dircache/internal/directory"
)

// AddUser writes name to the directory and inserts the resulting id into
// caches (1) and (2). Returns the new id, or 0 with a nil error when the
// manager is not configured.
func (m *Manager) AddUser(ctx context.Context, name string) (int64, error) {
	if !m.configured {
		return 0, nil
	}

	user, err := m.userDir.AddUser(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("dircache: add user %q: %w", name, err)
	}

	m.usersToIDs.Put(user.Name, user.ID)
	m.idsToUsers.Put(user.ID, user.Name)
	logMutation("add_user", name, user.ID)

	return user.ID, nil
}

// RemoveUser reads the user's id via cache (1), deletes it from the
// directory, then invalidates the caches. A user the directory does not
// know (after the read-through on cache (1)) is a no-op: there is nothing
// to delete.
func (m *Manager) RemoveUser(ctx context.Context, name string) error {
	if !m.configured {
		return nil
	}

	id, found, err := m.usersToIDs.Get(ctx, name, name)
	if err != nil {
		return fmt.Errorf("dircache: remove user %q: %w", name, err)
	}

	if !found {
		return nil
	}

	if err := m.userDir.RemoveUser(ctx, id); err != nil {
		return fmt.Errorf("dircache: remove user %q: %w", name, err)
	}

	m.RemoveUserFromCache(name)
	logMutation("remove_user", name, id)

	return nil
}

// RemoveUserFromCache invalidates name from cache (1), its id from cache
// (2), and name from cache (5), without issuing a directory call. The
// removal listener on (5) cleans the reverse memberships. Used to repair
// caches after an upstream mutation performed elsewhere.
//
// Invalidating cache (5) takes userLock, the same stripe mergeUserGroups
// holds for its read-modify-write on usersToGroups[name] — otherwise a
// concurrent merge could Put a stale list back in right after this
// invalidates it, resurrecting a membership the caller believes is gone.
func (m *Manager) RemoveUserFromCache(name string) {
	if !m.configured {
		return
	}

	if id, ok := m.usersToIDs.Peek(name); ok {
		m.idsToUsers.Invalidate(id)
	}

	m.usersToIDs.Invalidate(name)

	m.userLock.Lock(name)
	m.usersToGroups.Invalidate(name)
	m.userLock.Unlock(name)
}

// AddGroup mirrors AddUser over caches (3) and (4).
func (m *Manager) AddGroup(ctx context.Context, name string) (int64, error) {
	if !m.configured {
		return 0, nil
	}

	group, err := m.groupDir.AddGroup(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("dircache: add group %q: %w", name, err)
	}

	m.groupsToIDs.Put(group.Name, group.ID)
	m.idsToGroups.Put(group.ID, group.Name)
	logMutation("add_group", name, group.ID)

	return group.ID, nil
}

// RemoveGroup mirrors RemoveUser over caches (3) and (4).
func (m *Manager) RemoveGroup(ctx context.Context, name string) error {
	if !m.configured {
		return nil
	}

	id, found, err := m.groupsToIDs.Get(ctx, name, name)
	if err != nil {
		return fmt.Errorf("dircache: remove group %q: %w", name, err)
	}

	if !found {
		return nil
	}

	if err := m.groupDir.RemoveGroup(ctx, id); err != nil {
		return fmt.Errorf("dircache: remove group %q: %w", name, err)
	}

	m.RemoveGroupFromCache(name)
	logMutation("remove_group", name, id)

	return nil
}

// RemoveGroupFromCache mirrors RemoveUserFromCache over caches (3), (4)
// and (6), taking groupLock around the cache (6) invalidate for the same
// reason RemoveUserFromCache takes userLock around cache (5)'s.
func (m *Manager) RemoveGroupFromCache(name string) {
	if !m.configured {
		return
	}

	if id, ok := m.groupsToIDs.Peek(name); ok {
		m.idsToGroups.Invalidate(id)
	}

	m.groupsToIDs.Invalidate(name)

	m.groupLock.Lock(name)
	m.groupsToUsers.Invalidate(name)
	m.groupLock.Unlock(name)
}

// GetUserID returns the cached or directory-backed id for name, or 0 if
// no such user exists.
func (m *Manager) GetUserID(ctx context.Context, name string) (int64, error) {
	if !m.configured {
		return 0, nil
	}

	id, found, err := m.usersToIDs.Get(ctx, name, name)
	if err != nil {
		return 0, fmt.Errorf("dircache: get user id %q: %w", name, err)
	}

	if !found {
		return 0, nil
	}

	return id, nil
}

// GetGroupID mirrors GetUserID over cache (3).
func (m *Manager) GetGroupID(ctx context.Context, name string) (int64, error) {
	if !m.configured {
		return 0, nil
	}

	id, found, err := m.groupsToIDs.Get(ctx, name, name)
	if err != nil {
		return 0, fmt.Errorf("dircache: get group id %q: %w", name, err)
	}

	if !found {
		return 0, nil
	}

	return id, nil
}

// GetUserName returns the cached or directory-backed name for id, or ""
// if no such user exists.
func (m *Manager) GetUserName(ctx context.Context, id int64) (string, error) {
	if !m.configured {
		return "", nil
	}

	name, found, err := m.idsToUsers.Get(ctx, id, formatID(id))
	if err != nil {
		return "", fmt.Errorf("dircache: get user name %d: %w", id, err)
	}

	if !found {
		return "", nil
	}

	return name, nil
}

// GetGroupName mirrors GetUserName over cache (4).
func (m *Manager) GetGroupName(ctx context.Context, id int64) (string, error) {
	if !m.configured {
		return "", nil
	}

	name, found, err := m.idsToGroups.Get(ctx, id, formatID(id))
	if err != nil {
		return "", fmt.Errorf("dircache: get group name %d: %w", id, err)
	}

	if !found {
		return "", nil
	}

	return name, nil
}

// GetGroups returns the group names user belongs to, read-through on
// cache (5), or nil if user is unknown.
func (m *Manager) GetGroups(ctx context.Context, user string) ([]string, error) {
	if !m.configured {
		return nil, nil
	}

	groups, found, err := m.usersToGroups.Get(ctx, user, user)
	if err != nil {
		return nil, fmt.Errorf("dircache: get groups for %q: %w", user, err)
	}

	if !found {
		return nil, nil
	}

	return groups, nil
}

// AddUserGroups is the central multi-index write described in spec.md
// §4.2: it ensures user and every name in groups exist, writes the
// membership rows as one unit of work, and merges the result into caches
// (5) and (6). A foreign-key violation triggers exactly one cache-
// invalidate-and-retry cycle; a unique-key violation is swallowed.
func (m *Manager) AddUserGroups(ctx context.Context, user string, groups []string) error {
	return m.addUserGroups(ctx, user, groups, true)
}

func (m *Manager) addUserGroups(ctx context.Context, user string, groups []string, allowRetry bool) error {
	if !m.configured {
		return nil
	}

	filtered := make([]string, 0, len(groups))
	for _, g := range groups {
		if g != "" {
			filtered = append(filtered, g)
		}
	}

	if len(filtered) == 0 {
		return nil
	}

	if existing, ok := m.usersToGroups.Peek(user); ok && supersetOf(existing, filtered) {
		return nil
	}

	userID, err := m.ensureUserID(ctx, user)
	if err != nil {
		return fmt.Errorf("dircache: add user groups for %q: %w", user, err)
	}

	groupIDs := make([]int64, 0, len(filtered))
	for _, g := range filtered {
		gid, err := m.ensureGroupID(ctx, g)
		if err != nil {
			return fmt.Errorf("dircache: add user groups for %q: %w", user, err)
		}

		groupIDs = append(groupIDs, gid)
	}

	writeErr := m.membershipDir.AddUserToGroups(ctx, userID, groupIDs)

	switch {
	case writeErr == nil:
		// fall through to the cache update below

	case errors.Is(writeErr, directory.ErrUniqueViolation):
		m.metrics.RecordUniqueViolationSwallowed()
		log.Debug().Str("user", user).Strs("groups", filtered).
			Msg("dircache: membership already existed, treating unique-key violation as success")

	case errors.Is(writeErr, directory.ErrForeignKeyViolation) && allowRetry:
		m.metrics.RecordForeignKeyRetry()
		log.Warn().Str("user", user).Strs("groups", filtered).
			Msg("dircache: foreign-key violation adding user groups, invalidating and retrying once")

		m.RemoveUserFromCache(user)
		for _, g := range filtered {
			m.RemoveGroupFromCache(g)
		}

		return m.addUserGroups(ctx, user, filtered, false)

	default:
		return fmt.Errorf("dircache: add user groups for %q: %w", user, writeErr)
	}

	m.mergeUserGroups(user, filtered)

	return nil
}

// RemoveUserFromGroup looks up both ids, deletes the membership row, then
// detaches the pair from caches (5) and (6). Either name being unknown to
// the directory (after the read-through on cache (1) or (3)) is a no-op.
func (m *Manager) RemoveUserFromGroup(ctx context.Context, user, group string) error {
	if !m.configured {
		return nil
	}

	userID, found, err := m.usersToIDs.Get(ctx, user, user)
	if err != nil {
		return fmt.Errorf("dircache: remove %q from %q: %w", user, group, err)
	}

	if !found {
		return nil
	}

	groupID, found, err := m.groupsToIDs.Get(ctx, group, group)
	if err != nil {
		return fmt.Errorf("dircache: remove %q from %q: %w", user, group, err)
	}

	if !found {
		return nil
	}

	if err := m.membershipDir.RemoveUserFromGroup(ctx, userID, groupID); err != nil {
		return fmt.Errorf("dircache: remove %q from %q: %w", user, group, err)
	}

	m.detachUserFromGroup(user, group)

	return nil
}

// AddUserGroupTx wraps AddUserGroups. When cacheOnly is true, no
// directory call occurs and only the cache merge runs — used by an
// outside notification path (e.g. another node reporting a membership
// change) to repair local caches without re-issuing the write.
func (m *Manager) AddUserGroupTx(ctx context.Context, user string, groups []string, cacheOnly bool) error {
	if !m.configured {
		return nil
	}

	if !cacheOnly {
		return m.AddUserGroups(ctx, user, groups)
	}

	filtered := make([]string, 0, len(groups))
	for _, g := range groups {
		if g != "" {
			filtered = append(filtered, g)
		}
	}

	if len(filtered) == 0 {
		return nil
	}

	m.mergeUserGroups(user, filtered)

	return nil
}

// RemoveUserGroupTx wraps RemoveUserFromGroup with the same cacheOnly
// semantics as AddUserGroupTx.
func (m *Manager) RemoveUserGroupTx(ctx context.Context, user, group string, cacheOnly bool) error {
	if !m.configured {
		return nil
	}

	if !cacheOnly {
		return m.RemoveUserFromGroup(ctx, user, group)
	}

	m.detachUserFromGroup(user, group)

	return nil
}

// Clear invalidates all six caches. Removal listeners fire for every
// entry; the cascade converges because each listener only invalidates,
// never inserts.
func (m *Manager) Clear() {
	if !m.configured {
		return
	}

	clearCache(m.usersToIDs)
	clearCache(m.idsToUsers)
	clearCache(m.groupsToIDs)
	clearCache(m.idsToGroups)
	clearCache(m.usersToGroups)
	clearCache(m.groupsToUsers)
}

func clearCache[K comparable, V any](c *loadingCache[K, V]) {
	for _, key := range c.Keys() {
		c.Invalidate(key)
	}
}
