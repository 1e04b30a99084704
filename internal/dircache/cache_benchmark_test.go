package dircache

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkGetUserID_CacheHit measures the read-through cache's fast path
// once the user/id pair has already been back-filled.
func BenchmarkGetUserID_CacheHit(b *testing.B) {
	f := newFakeDirectory()
	f.seedUser(1, "alice")

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()
	if _, err := m.GetUserID(ctx, "alice"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for range b.N {
		if _, err := m.GetUserID(ctx, "alice"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGetGroups_CacheHit measures a read-through hit against the
// list-valued membership cache (5).
func BenchmarkGetGroups_CacheHit(b *testing.B) {
	f := newFakeDirectory()
	f.seedUser(1, "alice")
	for i := range 20 {
		gid := int64(100 + i)
		f.seedGroup(gid, fmt.Sprintf("group%d", i))
		f.seedMembership(1, gid)
	}

	m := newTestManager(f)
	defer m.Close()

	ctx := context.Background()
	if _, err := m.GetGroups(ctx, "alice"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for range b.N {
		if _, err := m.GetGroups(ctx, "alice"); err != nil {
			b.Fatal(err)
		}
	}
}
