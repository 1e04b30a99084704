package dircache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/dircache/internal/directory"
)

// Manager is the single entry point onto the six coherent index caches.
// A Manager built by New with a complete Config is safe for concurrent
// use by many callers; one built with an incomplete Config is
// permanently in not-configured mode (spec.md §4.4).
type Manager struct {
	configured bool

	userDir       directory.UserDirectory
	groupDir      directory.GroupDirectory
	membershipDir directory.MembershipDirectory

	usersToIDs    *loadingCache[string, int64]  // (1)
	idsToUsers    *loadingCache[int64, string]  // (2)
	groupsToIDs   *loadingCache[string, int64]  // (3)
	idsToGroups   *loadingCache[int64, string]  // (4)
	usersToGroups *loadingCache[string, []string] // (5)
	groupsToUsers *loadingCache[string, []string] // (6)

	userLock  *keyLock // serializes read-modify-write on usersToGroups[user]
	groupLock *keyLock // serializes read-modify-write on groupsToUsers[group]

	events   *eventQueue
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *Metrics
}

// Metrics returns the manager's cache statistics. Returns nil when the
// manager is not configured.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// ---- read-through loaders -------------------------------------------------

func (m *Manager) loadUserID(ctx context.Context, name string) (int64, error) {
	user, err := m.userDir.GetUserByName(ctx, name)
	if err != nil {
		return 0, err
	}

	m.idsToUsers.Put(user.ID, user.Name)

	return user.ID, nil
}

func (m *Manager) loadUserName(ctx context.Context, id int64) (string, error) {
	user, err := m.userDir.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}

	m.usersToIDs.Put(user.Name, user.ID)

	return user.Name, nil
}

func (m *Manager) loadGroupID(ctx context.Context, name string) (int64, error) {
	group, err := m.groupDir.GetGroupByName(ctx, name)
	if err != nil {
		return 0, err
	}

	m.idsToGroups.Put(group.ID, group.Name)

	return group.ID, nil
}

func (m *Manager) loadGroupName(ctx context.Context, id int64) (string, error) {
	group, err := m.groupDir.GetGroupByID(ctx, id)
	if err != nil {
		return "", err
	}

	m.groupsToIDs.Put(group.Name, group.ID)

	return group.Name, nil
}

// loadUserGroups implements cache (5)'s loader: resolve the user's id
// (through cache (1)), query the directory for memberships, then back-
// fill (3), (4) and (6) for every group found, maintaining invariant 2.
func (m *Manager) loadUserGroups(ctx context.Context, user string) ([]string, error) {
	userID, found, err := m.usersToIDs.Get(ctx, user, user)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, directory.ErrNotFound
	}

	groups, err := m.membershipDir.GetGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(groups))
	for _, g := range groups {
		m.groupsToIDs.Put(g.Name, g.ID)
		m.idsToGroups.Put(g.ID, g.Name)
		names = append(names, g.Name)
		m.appendToGroupUsers(g.Name, user)
	}

	return names, nil
}

// ---- eviction effects -------------------------------------------------
//
// Every onEvict* method below runs synchronously while the evicting
// cache's own lock may still be held, so each one only ever enqueues a
// closure onto the shared event queue instead of mutating a sibling cache
// inline (spec.md §4.1, §5, §9).

func (m *Manager) onEvictUsersToIDs(name string, id int64) {
	m.events.push(func() { m.idsToUsers.Invalidate(id) })
}

func (m *Manager) onEvictIDsToUsers(id int64, name string) {
	m.events.push(func() { m.usersToIDs.Invalidate(name) })
}

func (m *Manager) onEvictGroupsToIDs(name string, id int64) {
	m.events.push(func() { m.idsToGroups.Invalidate(id) })
}

func (m *Manager) onEvictIDsToGroups(id int64, name string) {
	m.events.push(func() { m.groupsToIDs.Invalidate(name) })
}

func (m *Manager) onEvictUsersToGroups(user string, groups []string) {
	m.events.push(func() {
		for _, g := range groups {
			m.removeUserFromGroupsToUsers(g, user)
		}
	})
}

func (m *Manager) onEvictGroupsToUsers(group string, users []string) {
	m.events.push(func() {
		for _, u := range users {
			m.removeGroupFromUsersToGroups(u, group)
		}
	})
}

func (m *Manager) dispatchLoop() {
	defer m.wg.Done()

	for {
		fn, ok := m.events.pop()
		if !ok {
			return
		}

		fn()
	}
}

// ---- membership list mutation helpers ----------------------------------
//
// These hold a per-key stripe for the duration of their read-modify-write
// so two concurrent callers touching the same user or group never lose an
// update racing on the copy-on-write slice (spec.md §9 design note (a)).

// appendToGroupUsers adds user to groupsToUsers[group], creating the
// entry if absent, without duplicating an already-present user.
func (m *Manager) appendToGroupUsers(group, user string) {
	m.groupLock.Lock(group)
	defer m.groupLock.Unlock(group)

	existing, ok := m.groupsToUsers.Peek(group)
	if !ok {
		m.groupsToUsers.Put(group, []string{user})
		return
	}

	for _, u := range existing {
		if u == user {
			return
		}
	}

	updated := make([]string, len(existing), len(existing)+1)
	copy(updated, existing)
	updated = append(updated, user)
	m.groupsToUsers.Put(group, updated)
}

// mergeUserGroups merges groups into usersToGroups[user], creating the
// list if absent, and appends user to groupsToUsers[g] for every group
// that was not already present in the cached list (spec.md §4.2 step 6).
func (m *Manager) mergeUserGroups(user string, groups []string) {
	m.userLock.Lock(user)

	existing, _ := m.usersToGroups.Peek(user)

	present := make(map[string]struct{}, len(existing))
	for _, g := range existing {
		present[g] = struct{}{}
	}

	merged := make([]string, len(existing), len(existing)+len(groups))
	copy(merged, existing)

	newlyAdded := make([]string, 0, len(groups))

	for _, g := range groups {
		if _, ok := present[g]; ok {
			continue
		}

		present[g] = struct{}{}
		merged = append(merged, g)
		newlyAdded = append(newlyAdded, g)
	}

	m.usersToGroups.Put(user, merged)
	m.userLock.Unlock(user)

	for _, g := range newlyAdded {
		m.appendToGroupUsers(g, user)
	}
}

// detachUserFromGroup removes group from usersToGroups[user] and user
// from groupsToUsers[group], invalidating either key if its list empties
// (spec.md §4.2 removeUserFromGroup).
func (m *Manager) detachUserFromGroup(user, group string) {
	m.userLock.Lock(user)
	if existing, ok := m.usersToGroups.Peek(user); ok {
		updated := removeString(existing, group)
		if len(updated) == 0 {
			m.usersToGroups.Invalidate(user)
		} else {
			m.usersToGroups.Put(user, updated)
		}
	}
	m.userLock.Unlock(user)

	m.groupLock.Lock(group)
	if existing, ok := m.groupsToUsers.Peek(group); ok {
		updated := removeString(existing, user)
		if len(updated) == 0 {
			m.groupsToUsers.Invalidate(group)
		} else {
			m.groupsToUsers.Put(group, updated)
		}
	}
	m.groupLock.Unlock(group)
}

// removeUserFromGroupsToUsers removes user from groupsToUsers[group], the
// removal effect of cache (5)'s eviction path.
func (m *Manager) removeUserFromGroupsToUsers(group, user string) {
	m.groupLock.Lock(group)
	defer m.groupLock.Unlock(group)

	existing, ok := m.groupsToUsers.Peek(group)
	if !ok {
		return
	}

	updated := removeString(existing, user)
	if len(updated) == 0 {
		m.groupsToUsers.Invalidate(group)
		return
	}

	m.groupsToUsers.Put(group, updated)
}

// removeGroupFromUsersToGroups removes group from usersToGroups[user], the
// removal effect of cache (6)'s eviction path.
func (m *Manager) removeGroupFromUsersToGroups(user, group string) {
	m.userLock.Lock(user)
	defer m.userLock.Unlock(user)

	existing, ok := m.usersToGroups.Peek(user)
	if !ok {
		return
	}

	updated := removeString(existing, group)
	if len(updated) == 0 {
		m.usersToGroups.Invalidate(user)
		return
	}

	m.usersToGroups.Put(user, updated)
}

// ensureUserID returns the cached id for name without a directory read-
// through, creating the user via AddUser if cache (1) does not have it
// (spec.md §4.2 addUserGroups step 3 — deliberately a Peek, not a Get:
// the source treats "not yet cached" as "doesn't exist"). A unique
// violation on that create — the name turning out to already be in the
// directory under an id this cache never learned — falls back to a
// lookup instead of failing the whole operation, since "ensure exists"
// is satisfied either way.
func (m *Manager) ensureUserID(ctx context.Context, name string) (int64, error) {
	if id, ok := m.usersToIDs.Peek(name); ok {
		return id, nil
	}

	id, err := m.AddUser(ctx, name)
	if err == nil {
		return id, nil
	}

	if errors.Is(err, directory.ErrUniqueViolation) {
		return m.GetUserID(ctx, name)
	}

	return 0, err
}

// ensureGroupID is ensureUserID's mirror over cache (3) and AddGroup.
func (m *Manager) ensureGroupID(ctx context.Context, name string) (int64, error) {
	if id, ok := m.groupsToIDs.Peek(name); ok {
		return id, nil
	}

	id, err := m.AddGroup(ctx, name)
	if err == nil {
		return id, nil
	}

	if errors.Is(err, directory.ErrUniqueViolation) {
		return m.GetGroupID(ctx, name)
	}

	return 0, err
}

func removeString(list []string, target string) []string {
	out := make([]string, 0, len(list))

	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}

	return out
}

// supersetOf reports whether every element of requested is present in
// existing.
func supersetOf(existing, requested []string) bool {
	set := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		set[e] = struct{}{}
	}

	for _, r := range requested {
		if _, ok := set[r]; !ok {
			return false
		}
	}

	return true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func logMutation(op, name string, id int64) {
	log.Debug().Str("op", op).Str("entity", name).Int64("id", id).Msg("dircache: mutation applied")
}
