package dircache

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/dircache/internal/directory"
	"github.com/netresearch/dircache/internal/version"
)

// Default bounds applied when a Config leaves EvictionTTL or LRUMax at
// its zero value, mirroring the teacher's NewWithConfig defaulting a
// zero refreshInterval to 30s rather than rejecting construction.
const (
	defaultEvictionTTL = 5 * time.Minute
	defaultLRUMax      = 10_000
)

// Cache names used for metrics and log fields, numbered as in spec.md
// §4.1's table.
const (
	cacheUsersToIDs    = "users_to_ids"    // (1)
	cacheIDsToUsers    = "ids_to_users"    // (2)
	cacheGroupsToIDs   = "groups_to_ids"   // (3)
	cacheIDsToGroups   = "ids_to_groups"   // (4)
	cacheUsersToGroups = "users_to_groups" // (5)
	cacheGroupsToUsers = "groups_to_users" // (6)
)

// Config configures a Manager. UserAccess, GroupAccess and
// MembershipAccess are the three directory gateway adapters; any one left
// nil puts the resulting Manager into not-configured mode (spec.md §4.4)
// regardless of the other two.
type Config struct {
	UserAccess       directory.UserDirectory
	GroupAccess      directory.GroupDirectory
	MembershipAccess directory.MembershipDirectory

	// EvictionTTL is the write-expiry applied to all six caches. Zero
	// falls back to a 5-minute default.
	EvictionTTL time.Duration
	// LRUMax is the per-cache capacity bound. Zero falls back to a
	// 10,000-entry default.
	LRUMax int
}

// New constructs a Manager from cfg. When any of the three directory
// adapters is nil, the returned Manager is not configured: every public
// operation short-circuits to its not-found sentinel without allocating
// a single cache or starting the eviction-dispatch goroutine.
func New(cfg Config) *Manager {
	m := &Manager{
		configured: cfg.UserAccess != nil && cfg.GroupAccess != nil && cfg.MembershipAccess != nil,
	}

	if !m.configured {
		log.Warn().Msg("dircache: constructed without a complete directory adapter set, operating in not-configured mode")
		return m
	}

	ttl := cfg.EvictionTTL
	if ttl <= 0 {
		ttl = defaultEvictionTTL
	}

	size := cfg.LRUMax
	if size <= 0 {
		size = defaultLRUMax
	}

	m.userDir = cfg.UserAccess
	m.groupDir = cfg.GroupAccess
	m.membershipDir = cfg.MembershipAccess
	m.metrics = NewMetrics()
	m.userLock = newKeyLock()
	m.groupLock = newKeyLock()
	m.events = newEventQueue()

	m.usersToIDs = newLoadingCache(cacheUsersToIDs, size, ttl, m.loadUserID, m.onEvictUsersToIDs, m.metrics)
	m.idsToUsers = newLoadingCache(cacheIDsToUsers, size, ttl, m.loadUserName, m.onEvictIDsToUsers, m.metrics)
	m.groupsToIDs = newLoadingCache(cacheGroupsToIDs, size, ttl, m.loadGroupID, m.onEvictGroupsToIDs, m.metrics)
	m.idsToGroups = newLoadingCache(cacheIDsToGroups, size, ttl, m.loadGroupName, m.onEvictIDsToGroups, m.metrics)
	m.usersToGroups = newLoadingCache(cacheUsersToGroups, size, ttl, m.loadUserGroups, m.onEvictUsersToGroups, m.metrics)
	m.groupsToUsers = newLoadingCache[string, []string](cacheGroupsToUsers, size, ttl, nil, m.onEvictGroupsToUsers, m.metrics)

	m.wg.Add(1)
	go m.dispatchLoop()

	log.Info().Dur("eviction_ttl", ttl).Int("lru_max", size).Str("version", version.FormatVersion()).
		Msg("dircache: manager configured")

	return m
}

// Close stops the eviction-dispatch goroutine and waits for it to drain.
// Safe to call multiple times, and safe to call on a not-configured
// Manager (a no-op). Grounded in the teacher's Manager.Stop()/sync.Once
// shutdown pattern.
func (m *Manager) Close() {
	if !m.configured {
		return
	}

	m.stopOnce.Do(func() {
		m.events.close()
	})

	m.wg.Wait()
}
