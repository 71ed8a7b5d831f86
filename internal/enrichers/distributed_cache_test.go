package enrichers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emojidb/internal/redis"
)

func setupDistributedCache(t *testing.T) (*DistributedResponseCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := NewDistributedResponseCache(&CacheConfig{Enabled: true, TTL: time.Hour}, client, nil)
	return cache, mr
}

func TestDistributedResponseCache_RoundTrip(t *testing.T) {
	cache, mr := setupDistributedCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "grinning-face")
	assert.False(t, ok)

	data := sampleData()
	cache.Set(ctx, "grinning-face", data)

	assert.True(t, mr.Exists(DefaultCacheKeyPrefix+"grinning-face"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultCacheKeyPrefix+"grinning-face"))

	got, ok := cache.Get(ctx, "grinning-face")
	require.True(t, ok)
	assert.Equal(t, data, got)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.Equal(t, "redis", stats["backend"])
}

func TestDistributedResponseCache_Expiry(t *testing.T) {
	cache, mr := setupDistributedCache(t)
	ctx := context.Background()

	cache.Set(ctx, "red-heart", sampleData())
	mr.FastForward(2 * time.Hour)

	_, ok := cache.Get(ctx, "red-heart")
	assert.False(t, ok)
}

func TestDistributedResponseCache_CorruptEntry(t *testing.T) {
	cache, mr := setupDistributedCache(t)

	require.NoError(t, mr.Set(DefaultCacheKeyPrefix+"broken", "{not json"))

	_, ok := cache.Get(context.Background(), "broken")
	assert.False(t, ok)
}

func TestDistributedResponseCache_SizeDeleteClear(t *testing.T) {
	cache, mr := setupDistributedCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cache.Set(ctx, fmt.Sprintf("slug-%d", i), sampleData())
	}
	require.NoError(t, mr.Set("unrelated", "x"))

	assert.Equal(t, 5, cache.Size())

	cache.Delete(ctx, "slug-0")
	assert.Equal(t, 4, cache.Size())

	cache.Clear(ctx)
	assert.Equal(t, 0, cache.Size())
	assert.True(t, mr.Exists("unrelated"))
}

func TestDistributedResponseCache_Unavailable(t *testing.T) {
	cache, mr := setupDistributedCache(t)
	mr.Close()

	ctx := context.Background()
	cache.Set(ctx, "grinning-face", sampleData())
	_, ok := cache.Get(ctx, "grinning-face")
	assert.False(t, ok)
	assert.Equal(t, -1, cache.Size())
}
