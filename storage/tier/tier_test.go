package tier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"kotobadb.dev/kotobadb/storage"
)

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "kotobadb:cache:")
}

func TestTier_PutThenGetServesFromHot(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemory(), storage.NewMemory(), nil, NewManualPolicy())

	require.NoError(t, tr.Put(ctx, []byte("V:1"), []byte("alice")))
	v, ok, err := tr.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("alice"), v)
}

func TestTier_ColdHitPromotesToHot(t *testing.T) {
	ctx := context.Background()
	hot, cold := storage.NewMemory(), storage.NewMemory()
	require.NoError(t, cold.Put(ctx, []byte("V:1"), []byte("bob")))

	tr := New(hot, cold, nil, NewManualPolicy())
	v, ok, err := tr.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("bob"), v)

	// promoted: now present in hot too
	v, ok, err = hot.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("bob"), v)
}

func TestTier_CacheServedBeforeHot(t *testing.T) {
	ctx := context.Background()
	cache := newRedisCache(t)
	hot := storage.NewMemory()
	tr := New(hot, storage.NewMemory(), cache, NewManualPolicy())

	require.NoError(t, cache.Set(ctx, []byte("V:1"), []byte("cached"), time.Minute))
	v, ok, err := tr.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("cached"), v)
}

func TestTier_InvalidateWriteSetDropsCachedPrefix(t *testing.T) {
	ctx := context.Background()
	cache := newRedisCache(t)
	tr := New(storage.NewMemory(), storage.NewMemory(), cache, NewManualPolicy())

	require.NoError(t, cache.Set(ctx, []byte("V:1"), []byte("x"), time.Minute))
	require.NoError(t, cache.Set(ctx, []byte("V:2"), []byte("y"), time.Minute))

	tr.InvalidateWriteSet(ctx, [][]byte{[]byte("V:")})

	_, ok, err := cache.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Get(ctx, []byte("V:2"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMigrator_SweepDemotesColdCandidates(t *testing.T) {
	ctx := context.Background()
	hot, cold := storage.NewMemory(), storage.NewMemory()
	policy := NewManualPolicy()
	tr := New(hot, cold, nil, policy)

	require.NoError(t, tr.Put(ctx, []byte("V:1"), []byte("large-blob")))
	policy.Pin("V:1")

	m := NewMigrator(tr, time.Millisecond)
	require.NoError(t, m.sweep(ctx))

	_, ok, err := hot.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err := cold.Get(ctx, []byte("V:1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("large-blob"), v)
}

func TestFrequencyBasedPolicy_EvictsLeastRecentlyUsed(t *testing.T) {
	policy, err := NewFrequencyBasedPolicy(2)
	require.NoError(t, err)

	policy.OnAccess([]byte("a"))
	policy.OnAccess([]byte("b"))
	policy.OnAccess([]byte("c")) // evicts "a"

	require.Equal(t, Cold, policy.Route([]byte("a"), AccessMeta{}))
	require.Equal(t, Hot, policy.Route([]byte("c"), AccessMeta{}))
}

func TestSizeBasedPolicy_RoutesLargeValuesCold(t *testing.T) {
	policy := NewSizeBasedPolicy(1024)
	require.Equal(t, Hot, policy.Route(nil, AccessMeta{ValueSize: 512}))
	require.Equal(t, Cold, policy.Route(nil, AccessMeta{ValueSize: 2048}))
}

func TestTier_ScanMergesHotAndColdInOrder(t *testing.T) {
	ctx := context.Background()
	hot, cold := storage.NewMemory(), storage.NewMemory()
	tr := New(hot, cold, nil, NewManualPolicy())

	require.NoError(t, hot.Put(ctx, []byte("V:b"), []byte("hot-b")))
	require.NoError(t, cold.Put(ctx, []byte("V:a"), []byte("cold-a")))
	require.NoError(t, cold.Put(ctx, []byte("V:c"), []byte("cold-c")))
	// Same key in both tiers: the hot copy must win.
	require.NoError(t, hot.Put(ctx, []byte("V:c"), []byte("hot-c")))

	it, err := tr.Scan(ctx, []byte("V:"))
	require.NoError(t, err)
	defer it.Close()

	var keys, values []string
	for it.Next() {
		keys = append(keys, string(it.Entry().Key))
		values = append(values, string(it.Entry().Value))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"V:a", "V:b", "V:c"}, keys)
	require.Equal(t, []string{"cold-a", "hot-b", "hot-c"}, values)
}

func TestTier_ScanEmptyPrefixYieldsNothing(t *testing.T) {
	ctx := context.Background()
	tr := New(storage.NewMemory(), storage.NewMemory(), nil, NewManualPolicy())

	it, err := tr.Scan(ctx, []byte("ZZ:"))
	require.NoError(t, err)
	defer it.Close()
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}
