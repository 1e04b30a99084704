package dircache

import (
	"hash/fnv"
	"sync"
)

// keyLockShards controls contention vs memory for the striped per-key
// lock: enough shards that unrelated keys rarely collide, few enough that
// the lock stays a fixed-size array.
const keyLockShards = 64

// keyLock is a small striped mutex, used to serialize the read-modify-
// write sequence on a single user's or group's membership list without
// forcing all keys through one global lock.
type keyLock struct {
	shards [keyLockShards]sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{}
}

func (k *keyLock) Lock(key string) {
	k.shards[shardFor(key)].Lock()
}

func (k *keyLock) Unlock(key string) {
	k.shards[shardFor(key)].Unlock()
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return h.Sum32() % keyLockShards
}
