package dircache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/netresearch/dircache/internal/directory"
)

// loaderFunc computes the value for a cache miss. A nil loaderFunc marks
// a cache with no read-through behavior (cache (6) in spec terms): a miss
// simply stays a miss.
type loaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// evictFunc runs when a key leaves the cache for any reason — explicit
// invalidation, TTL expiry, or LRU eviction. It must never mutate the
// cache it was called from, and should only ever enqueue effects on
// sibling caches rather than apply them inline.
type evictFunc[K comparable, V any] func(key K, value V)

// loadingCache wraps an expirable LRU with a read-through loader and
// per-key single-flight coordination, so concurrent misses on the same
// key collapse to one loader call.
type loadingCache[K comparable, V any] struct {
	name    string
	lru     *lru.LRU[K, V]
	group   singleflight.Group
	load    loaderFunc[K, V]
	metrics *Metrics
}

func newLoadingCache[K comparable, V any](
	name string,
	size int,
	ttl time.Duration,
	load loaderFunc[K, V],
	onEvict evictFunc[K, V],
	metrics *Metrics,
) *loadingCache[K, V] {
	c := &loadingCache[K, V]{
		name:    name,
		load:    load,
		metrics: metrics,
	}

	c.lru = lru.NewLRU[K, V](size, func(key K, value V) {
		metrics.RecordEviction(name)

		if onEvict != nil {
			onEvict(key, value)
		}
	}, ttl)

	return c
}

// Get returns the cached value for key, loading it on a miss via the
// configured loader. sfKey is the single-flight coordination key — it is
// passed separately from key because singleflight.Group keys on string,
// while K may be any comparable type (int64 ids included).
//
// A loader failure classified as directory.ErrNotFound is not propagated
// as an error: it is reported as a plain miss, matching spec.md's rule
// that not-found is a sentinel, never a thrown error.
func (c *loadingCache[K, V]) Get(ctx context.Context, key K, sfKey string) (V, bool, error) {
	if v, ok := c.lru.Get(key); ok {
		c.metrics.RecordHit(c.name)
		return v, true, nil
	}

	c.metrics.RecordMiss(c.name)

	if c.load == nil {
		var zero V
		return zero, false, nil
	}

	result, err, shared := c.group.Do(sfKey, func() (any, error) {
		if cached, ok := c.lru.Get(key); ok {
			return cached, nil
		}

		loaded, loadErr := c.load(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.lru.Add(key, loaded)

		return loaded, nil
	})

	if shared {
		c.metrics.RecordSingleflightCollapse(c.name)
	}

	if err != nil {
		var zero V

		if errors.Is(err, directory.ErrNotFound) {
			return zero, false, nil
		}

		log.Error().Err(err).Str("cache", c.name).Msg("dircache: loader failed")

		return zero, false, err
	}

	return result.(V), true, nil
}

// Peek returns the cached value without ever invoking the loader.
func (c *loadingCache[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(key)
}

// Put writes value under key, replacing any previous entry wholesale.
func (c *loadingCache[K, V]) Put(key K, value V) {
	c.lru.Add(key, value)
}

// Invalidate removes key, firing the eviction callback exactly as a TTL
// or size eviction would.
func (c *loadingCache[K, V]) Invalidate(key K) {
	c.lru.Remove(key)
}

// Keys returns a snapshot of the currently cached keys.
func (c *loadingCache[K, V]) Keys() []K {
	return c.lru.Keys()
}
