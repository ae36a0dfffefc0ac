package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/models"
	"github.com/newsflow/newsflow/pkg/config"
	"github.com/newsflow/newsflow/pkg/logging"
)

const (
	postKeyPrefix = "post:"
	postCountKey  = "postcache:count"
)

// PostCache holds full post snapshots keyed by post ID with a fixed TTL.
// Capacity is bounded globally through an approximate counter: the counter
// and the value writes are separate Redis commands, so the count can drift
// from the true key cardinality under concurrent writers. The eviction
// sweep keeps the drift bounded; the cap is best-effort, not exact.
type PostCache struct {
	client    *redis.Client
	ttl       time.Duration
	maxCached int
	logger    *zap.Logger
}

// NewPostCache creates a post content cache over the given Redis client
func NewPostCache(client *redis.Client, cfg *config.FeedConfig) *PostCache {
	return &PostCache{
		client:    client,
		ttl:       cfg.PostTTL,
		maxCached: cfg.MaxCachedPosts,
		logger:    logging.WithComponent("post-cache"),
	}
}

func postKey(postID int64) string {
	return fmt.Sprintf("%s%d", postKeyPrefix, postID)
}

// Put stores a post snapshot with the fixed TTL. When the approximate
// count has reached the cap, an eviction sweep runs before the store.
// The counter is only bumped for keys that did not previously exist.
func (p *PostCache) Put(ctx context.Context, post *models.Post) {
	if p == nil || p.client == nil || post == nil {
		return
	}
	key := postKey(post.ID)

	data, err := json.Marshal(post)
	if err != nil {
		p.logger.Error("failed to marshal post for cache",
			zap.Int64("post_id", post.ID), zap.Error(err))
		return
	}

	// IncrBy 0 is an atomic read that also initializes the counter.
	count, err := p.client.IncrBy(ctx, postCountKey, 0).Result()
	if err != nil {
		p.logger.Error("failed to read post cache counter", zap.Error(err))
		return
	}
	if count >= int64(p.maxCached) {
		p.logger.Warn("post cache at capacity, sweeping",
			zap.Int64("count", count), zap.Int("max", p.maxCached))
		p.sweep(ctx)
	}

	existed, err := p.client.Exists(ctx, key).Result()
	if err != nil {
		p.logger.Error("failed to check post cache key",
			zap.Int64("post_id", post.ID), zap.Error(err))
		return
	}

	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		p.logger.Error("failed to store post in cache",
			zap.Int64("post_id", post.ID), zap.Error(err))
		return
	}

	if existed == 0 {
		if err := p.client.Incr(ctx, postCountKey).Err(); err != nil {
			p.logger.Error("failed to increment post cache counter", zap.Error(err))
		}
	}
}

// Get returns the cached post snapshot, or (nil, false) when absent,
// expired or erroring
func (p *PostCache) Get(ctx context.Context, postID int64) (*models.Post, bool) {
	if p == nil || p.client == nil {
		return nil, false
	}
	data, err := p.client.Get(ctx, postKey(postID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Error("failed to read post from cache",
				zap.Int64("post_id", postID), zap.Error(err))
		}
		return nil, false
	}

	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		p.logger.Error("failed to unmarshal cached post",
			zap.Int64("post_id", postID), zap.Error(err))
		return nil, false
	}
	return &post, true
}

// Invalidate deletes the post's cache entry and decrements the counter.
// The decrement is unconditional, another accepted source of counter drift.
func (p *PostCache) Invalidate(ctx context.Context, postID int64) {
	if p == nil || p.client == nil {
		return
	}
	if err := p.client.Del(ctx, postKey(postID)).Err(); err != nil {
		p.logger.Error("failed to invalidate cached post",
			zap.Int64("post_id", postID), zap.Error(err))
		return
	}
	if err := p.client.Decr(ctx, postCountKey).Err(); err != nil {
		p.logger.Error("failed to decrement post cache counter", zap.Error(err))
	}
}

// sweep scans the post keyspace and, above 80% occupancy, evicts entries
// whose remaining TTL has dropped below half the fixed TTL until the
// estimated count is back to ~70% of the cap. The scan is linear but only
// runs when the cap is approached.
func (p *PostCache) sweep(ctx context.Context) {
	var keys []string
	iter := p.client.Scan(ctx, 0, postKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		p.logger.Error("post cache sweep scan failed", zap.Error(err))
		return
	}

	if len(keys) <= p.maxCached*8/10 {
		return
	}

	budget := len(keys) - p.maxCached*7/10
	removed := 0
	for _, key := range keys {
		if removed >= budget {
			break
		}
		ttl, err := p.client.TTL(ctx, key).Result()
		if err != nil {
			p.logger.Error("post cache sweep TTL check failed",
				zap.String("key", key), zap.Error(err))
			continue
		}
		if ttl >= 0 && ttl < p.ttl/2 {
			if err := p.client.Del(ctx, key).Err(); err != nil {
				p.logger.Error("post cache sweep delete failed",
					zap.String("key", key), zap.Error(err))
				continue
			}
			if err := p.client.Decr(ctx, postCountKey).Err(); err != nil {
				p.logger.Error("failed to decrement post cache counter", zap.Error(err))
			}
			removed++
		}
	}

	p.logger.Info("post cache sweep finished",
		zap.Int("scanned", len(keys)), zap.Int("removed", removed))
}
