package dircache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUserAndLookup_S1(t *testing.T) {
	// S1 — basic creation and lookup.
	f := newFakeDirectory()
	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	id, err := m.AddUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	gotID, err := m.GetUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, 0, f.calls.getUserByName, "GetUserID should hit the cache, not the directory")

	name, err := m.GetUserName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 0, f.calls.getUserByID, "back-fill from AddUser should make GetUserName a cache hit")
}

func TestGetGroupsBackfillsReverseIndex_S2(t *testing.T) {
	// S2 — membership load back-fills the reverse index.
	f := newFakeDirectory()
	f.seedUser(202, "bob")
	f.seedGroup(301, "devs")
	f.seedGroup(302, "ops")
	f.seedMembership(202, 301)
	f.seedMembership(202, 302)

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	groups, err := m.GetGroups(ctx, "bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"devs", "ops"}, groups)
	assert.Equal(t, 1, f.calls.getGroupsForUser)

	waitForDispatch(m)

	devsUsers, ok := m.groupsToUsers.Peek("devs")
	require.True(t, ok)
	assert.Contains(t, devsUsers, "bob")

	opsUsers, ok := m.groupsToUsers.Peek("ops")
	require.True(t, ok)
	assert.Contains(t, opsUsers, "bob")
}

func TestRemovalCascades_S3(t *testing.T) {
	// S3 — invalidating cache (5) cascades into cache (6), emptying and
	// removing both reverse-index entries.
	f := newFakeDirectory()
	f.seedUser(202, "bob")
	f.seedGroup(301, "devs")
	f.seedGroup(302, "ops")
	f.seedMembership(202, 301)
	f.seedMembership(202, 302)

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	_, err := m.GetGroups(ctx, "bob")
	require.NoError(t, err)
	waitForDispatch(m)

	m.usersToGroups.Invalidate("bob") // simulate TTL expiry
	waitForDispatch(m)

	_, ok := m.groupsToUsers.Peek("devs")
	assert.False(t, ok, "devs should be invalidated once its user list empties")

	_, ok = m.groupsToUsers.Peek("ops")
	assert.False(t, ok, "ops should be invalidated once its user list empties")
}

func TestAddUserGroupsForeignKeyRetry_S4(t *testing.T) {
	// S4 — foreign-key-violation recovery: caches (1)/(3) believe carol/
	// eng exist, but the directory has been told otherwise out-of-band.
	f := newFakeDirectory()
	f.seedUser(103, "carol")
	f.seedGroup(307, "eng")
	f.deleteUserRecord(103)

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	m.usersToIDs.Put("carol", 103)
	m.groupsToIDs.Put("eng", 307)

	err := m.AddUserGroups(ctx, "carol", []string{"eng"})
	require.NoError(t, err)

	assert.Equal(t, 2, f.calls.addUserToGroups, "exactly one retry: two attempts total")

	groups, err := m.GetGroups(ctx, "carol")
	require.NoError(t, err)
	assert.Contains(t, groups, "eng")
}

func TestAddUserGroupsUniqueViolationIsBenign_S5(t *testing.T) {
	// S5 — a pre-existing membership surfaces as success, not an error.
	f := newFakeDirectory()
	f.seedUser(202, "bob")
	f.seedGroup(301, "devs")
	f.seedMembership(202, 301)

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	err := m.AddUserGroups(ctx, "bob", []string{"devs"})
	require.NoError(t, err)

	groups, err := m.GetGroups(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"devs"}, groups)
}

func TestNotConfiguredModeNeverTouchesDirectory_S6(t *testing.T) {
	// S6 — not-configured mode.
	m := New(Config{})
	defer m.Close()

	ctx := context.Background()

	id, err := m.GetUserID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	newID, err := m.AddUser(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(0), newID)

	assert.Nil(t, m.usersToIDs, "not-configured manager must never allocate a cache")
}

func TestAddUserGroupsIdempotent_Invariant4(t *testing.T) {
	f := newFakeDirectory()
	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.AddUserGroups(ctx, "dave", []string{"eng", "ops"}))
	require.NoError(t, m.AddUserGroups(ctx, "dave", []string{"eng", "ops"}))

	groups, err := m.GetGroups(ctx, "dave")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"eng", "ops"}, groups)
}

func TestClearForcesReload_Invariant5(t *testing.T) {
	f := newFakeDirectory()
	f.seedUser(1, "alice")

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	_, err := m.GetUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls.getUserByName)

	m.Clear()

	_, err = m.GetUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls.getUserByName, "Clear must force a fresh directory load")
}

func TestNameIDBijection_Invariant1(t *testing.T) {
	f := newFakeDirectory()
	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	id, err := m.AddUser(ctx, "erin")
	require.NoError(t, err)

	gotID, ok := m.usersToIDs.Peek("erin")
	require.True(t, ok)
	assert.Equal(t, id, gotID)

	gotName, ok := m.idsToUsers.Peek(id)
	require.True(t, ok)
	assert.Equal(t, "erin", gotName)
}

func TestRemoveUserFromGroupDetachesBothSides(t *testing.T) {
	f := newFakeDirectory()
	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.AddUserGroups(ctx, "frank", []string{"sales"}))
	require.NoError(t, m.RemoveUserFromGroup(ctx, "frank", "sales"))

	_, ok := m.usersToGroups.Peek("frank")
	assert.False(t, ok)

	_, ok = m.groupsToUsers.Peek("sales")
	assert.False(t, ok)
}

func TestAddUserGroupTxCacheOnlyNeverCallsDirectory(t *testing.T) {
	f := newFakeDirectory()
	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	err := m.AddUserGroupTx(ctx, "gina", []string{"support"}, true)
	require.NoError(t, err)

	assert.Equal(t, 0, f.calls.addUser)
	assert.Equal(t, 0, f.calls.addGroup)
	assert.Equal(t, 0, f.calls.addUserToGroups)

	groups, err := m.GetGroups(ctx, "gina")
	require.NoError(t, err)
	assert.Equal(t, []string{"support"}, groups)
}

func TestConcurrentLoadsSingleFlight(t *testing.T) {
	f := newFakeDirectory()
	f.seedUser(55, "heidi")

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	const callers = 50
	wg.Add(callers)

	for range callers {
		go func() {
			defer wg.Done()
			_, _ = m.GetUserID(ctx, "heidi")
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, f.calls.getUserByName, "concurrent misses on the same key must collapse to one load")
}

// waitForDispatch gives the eviction-dispatch goroutine a chance to drain
// the event queue before a test inspects sibling-cache state.
func waitForDispatch(m *Manager) {
	done := make(chan struct{})
	m.events.push(func() { close(done) })
	<-done
}
