package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/newsflow/newsflow/pkg/config"
	"github.com/newsflow/newsflow/pkg/logging"
)

const feedKeyPrefix = "feed:user:"

// FeedIndex is the per-user cached feed: a Redis sorted set of post IDs
// scored by insertion time, capacity-bounded and expiring on a sliding TTL.
//
// All operations treat the index as advisory. Redis failures are logged
// and masked: writes become no-ops, reads report empty or miss. The read
// path falls back to the durable store, which is the consistency backstop.
type FeedIndex struct {
	client        *redis.Client
	maxSize       int
	ttl           time.Duration
	missThreshold int
	logger        *zap.Logger
}

// NewFeedIndex creates a feed index over the given Redis client.
// A nil client yields a disabled index that reports every read as a miss.
func NewFeedIndex(client *redis.Client, cfg *config.FeedConfig) *FeedIndex {
	return &FeedIndex{
		client:        client,
		maxSize:       cfg.MaxFeedSize,
		ttl:           cfg.FeedTTL,
		missThreshold: cfg.CacheMissThreshold,
		logger:        logging.WithComponent("feed-index"),
	}
}

func feedKey(userID int64) string {
	return fmt.Sprintf("%s%d", feedKeyPrefix, userID)
}

// AddPost inserts postID into the user's feed index scored by the current
// time, trims entries beyond the capacity bound and refreshes the sliding
// TTL. Duplicate inserts are a no-op on the set, so delivery is idempotent.
func (f *FeedIndex) AddPost(ctx context.Context, userID, postID int64) {
	if f == nil || f.client == nil {
		return
	}
	key := feedKey(userID)

	err := f.client.ZAdd(ctx, key, &redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: strconv.FormatInt(postID, 10),
	}).Err()
	if err != nil {
		f.logger.Error("failed to add post to feed index",
			zap.Int64("user_id", userID), zap.Int64("post_id", postID), zap.Error(err))
		return
	}

	size, err := f.client.ZCard(ctx, key).Result()
	if err != nil {
		f.logger.Error("failed to read feed index size",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if size > int64(f.maxSize) {
		// Drop the lowest-scored (oldest) entries beyond the cap.
		if err := f.client.ZRemRangeByRank(ctx, key, 0, size-int64(f.maxSize)-1).Err(); err != nil {
			f.logger.Error("failed to trim feed index",
				zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		f.logger.Debug("feed index trimmed",
			zap.Int64("user_id", userID), zap.Int64("evicted", size-int64(f.maxSize)))
	}

	if err := f.client.Expire(ctx, key, f.ttl).Err(); err != nil {
		f.logger.Error("failed to refresh feed index TTL",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

// RemovePost removes a single entry from the user's feed index if present
func (f *FeedIndex) RemovePost(ctx context.Context, userID, postID int64) {
	if f == nil || f.client == nil {
		return
	}
	if err := f.client.ZRem(ctx, feedKey(userID), strconv.FormatInt(postID, 10)).Err(); err != nil {
		f.logger.Error("failed to remove post from feed index",
			zap.Int64("user_id", userID), zap.Int64("post_id", postID), zap.Error(err))
	}
}

// GetFeed returns up to limit post IDs from the user's feed index, newest
// first. A non-nil cursor is a post ID acting as an exclusive upper bound:
// only IDs strictly below it are returned. Returns an empty slice on any
// underlying error.
func (f *FeedIndex) GetFeed(ctx context.Context, userID int64, cursor *int64, limit int) []int64 {
	if f == nil || f.client == nil {
		return []int64{}
	}
	key := feedKey(userID)

	// Without a cursor one page suffices; with one, read the whole entry
	// (bounded by the capacity cap) and filter by ID below.
	stop := int64(limit - 1)
	if cursor != nil {
		stop = int64(f.maxSize - 1)
	}

	members, err := f.client.ZRevRange(ctx, key, 0, stop).Result()
	if err != nil {
		f.logger.Error("failed to read feed index",
			zap.Int64("user_id", userID), zap.Error(err))
		return []int64{}
	}

	ids := make([]int64, 0, limit)
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			f.logger.Warn("dropping malformed feed index member",
				zap.Int64("user_id", userID), zap.String("member", member))
			continue
		}
		if cursor != nil && id >= *cursor {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids
}

// IsMiss reports whether the user's feed entry should be treated as a
// cache miss for a read of requestedSize. The absolute floor avoids
// rebuild storms for users whose whole candidate set is legitimately
// small. Errors count as a miss, the fail-safe default.
func (f *FeedIndex) IsMiss(ctx context.Context, userID int64, requestedSize int) bool {
	if f == nil || f.client == nil {
		return true
	}
	size, err := f.client.ZCard(ctx, feedKey(userID)).Result()
	if err != nil {
		f.logger.Error("failed to check feed index size",
			zap.Int64("user_id", userID), zap.Error(err))
		return true
	}
	return size < int64(f.missThreshold) && size < int64(requestedSize)
}

// Invalidate deletes the user's whole feed entry. Used on follow-graph
// change; coarse, with the cost amortized by rebuild-on-miss.
func (f *FeedIndex) Invalidate(ctx context.Context, userID int64) {
	if f == nil || f.client == nil {
		return
	}
	if err := f.client.Del(ctx, feedKey(userID)).Err(); err != nil {
		f.logger.Error("failed to invalidate feed index",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}
