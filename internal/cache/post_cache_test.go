package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsflow/newsflow/internal/models"
)

func setupPostCache(t *testing.T, maxCached int) (*PostCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testFeedConfig()
	cfg.MaxCachedPosts = maxCached
	return NewPostCache(client, cfg), mr
}

func testPost(id, userID int64, content string) *models.Post {
	return &models.Post{
		ID:        id,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func countPostKeys(mr *miniredis.Miniredis) int {
	n := 0
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, postKeyPrefix) {
			n++
		}
	}
	return n
}

func TestPostCache_PutGetRoundtrip(t *testing.T) {
	cache, _ := setupPostCache(t, 100)
	ctx := context.Background()

	post := testPost(10, 1, "hello feed")
	post.Media = []models.PostMedia{
		{PostID: 10, Position: 0, URL: "https://img.example/a.png"},
		{PostID: 10, Position: 1, URL: "https://img.example/b.png"},
	}
	cache.Put(ctx, post)

	got, ok := cache.Get(ctx, 10)
	require.True(t, ok)
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, post.UserID, got.UserID)
	assert.Equal(t, post.Content, got.Content)
	assert.Equal(t, []string{"https://img.example/a.png", "https://img.example/b.png"}, got.MediaURLs())
}

func TestPostCache_GetMiss(t *testing.T) {
	cache, _ := setupPostCache(t, 100)

	got, ok := cache.Get(context.Background(), 999)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestPostCache_Expiry(t *testing.T) {
	cache, mr := setupPostCache(t, 100)
	ctx := context.Background()

	cache.Put(ctx, testPost(10, 1, "ephemeral"))
	mr.FastForward(2*time.Hour + time.Second)

	_, ok := cache.Get(ctx, 10)
	assert.False(t, ok)
}

func TestPostCache_CounterTracksDistinctKeys(t *testing.T) {
	cache, mr := setupPostCache(t, 100)
	ctx := context.Background()

	cache.Put(ctx, testPost(10, 1, "v1"))
	cache.Put(ctx, testPost(10, 1, "v2")) // overwrite, no second increment
	cache.Put(ctx, testPost(11, 1, "other"))

	count, err := mr.Get(postCountKey)
	require.NoError(t, err)
	assert.Equal(t, "2", count)

	cache.Invalidate(ctx, 10)
	count, err = mr.Get(postCountKey)
	require.NoError(t, err)
	assert.Equal(t, "1", count)

	_, ok := cache.Get(ctx, 10)
	assert.False(t, ok)
}

func TestPostCache_NoSweepBelowCapacity(t *testing.T) {
	cache, mr := setupPostCache(t, 10)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		cache.Put(ctx, testPost(id, 1, "post"))
	}
	// Entries are stale enough to be sweep candidates, but the counter
	// is below the cap so no sweep runs.
	mr.FastForward(90 * time.Minute)

	cache.Put(ctx, testPost(6, 1, "post"))
	assert.Equal(t, 6, countPostKeys(mr))
}

func TestPostCache_SweepEvictsStaleEntries(t *testing.T) {
	cache, mr := setupPostCache(t, 10)
	ctx := context.Background()

	for id := int64(1); id <= 9; id++ {
		cache.Put(ctx, testPost(id, 1, "post"))
	}
	require.Equal(t, 9, countPostKeys(mr))

	// Push every entry's remaining TTL below half the fixed TTL, then
	// force the counter to the cap so the next store sweeps first.
	mr.FastForward(70 * time.Minute)
	require.NoError(t, mr.Set(postCountKey, "10"))

	cache.Put(ctx, testPost(100, 1, "post"))

	// Cap 10: sweep budget is len(keys) - 70% = 2, then the new entry
	// lands. Counter follows: 10 - 2 evicted + 1 stored.
	assert.Equal(t, 8, countPostKeys(mr))
	count, err := mr.Get(postCountKey)
	require.NoError(t, err)
	assert.Equal(t, "9", count)

	_, ok := cache.Get(ctx, 100)
	assert.True(t, ok)
}

func TestPostCache_SweepSkipsFreshEntries(t *testing.T) {
	cache, mr := setupPostCache(t, 10)
	ctx := context.Background()

	// Fresh entries with full TTL are never sweep candidates.
	for id := int64(1); id <= 9; id++ {
		cache.Put(ctx, testPost(id, 1, "post"))
	}
	require.NoError(t, mr.Set(postCountKey, "10"))

	cache.Put(ctx, testPost(100, 1, "post"))
	assert.Equal(t, 10, countPostKeys(mr))
}

func TestPostCache_ErrorsAreMasked(t *testing.T) {
	cache, mr := setupPostCache(t, 100)
	ctx := context.Background()

	mr.Close()

	cache.Put(ctx, testPost(10, 1, "unreachable"))
	cache.Invalidate(ctx, 10)
	_, ok := cache.Get(ctx, 10)
	assert.False(t, ok)
}

func TestPostCache_DisabledClient(t *testing.T) {
	cache := NewPostCache(nil, testFeedConfig())
	ctx := context.Background()

	cache.Put(ctx, testPost(10, 1, "nowhere"))
	_, ok := cache.Get(ctx, 10)
	assert.False(t, ok)
}
