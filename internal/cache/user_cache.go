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

const userKeyPrefix = "user:"

// UserCache holds user identity snapshots keyed by user ID with a fixed
// TTL. Like the post cache it is advisory: failures are logged and masked.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewUserCache creates a user identity cache over the given Redis client
func NewUserCache(client *redis.Client, cfg *config.FeedConfig) *UserCache {
	return &UserCache{
		client: client,
		ttl:    cfg.UserTTL,
		logger: logging.WithComponent("user-cache"),
	}
}

func userKey(userID int64) string {
	return fmt.Sprintf("%s%d", userKeyPrefix, userID)
}

// Put stores a user snapshot with the fixed TTL
func (u *UserCache) Put(ctx context.Context, user *models.User) {
	if u == nil || u.client == nil || user == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		u.logger.Error("failed to marshal user for cache",
			zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := u.client.Set(ctx, userKey(user.ID), data, u.ttl).Err(); err != nil {
		u.logger.Error("failed to store user in cache",
			zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// Get returns the cached user snapshot, or (nil, false) when absent,
// expired or erroring
func (u *UserCache) Get(ctx context.Context, userID int64) (*models.User, bool) {
	if u == nil || u.client == nil {
		return nil, false
	}
	data, err := u.client.Get(ctx, userKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			u.logger.Error("failed to read user from cache",
				zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, false
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		u.logger.Error("failed to unmarshal cached user",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	return &user, true
}

// Invalidate deletes the user's cache entry
func (u *UserCache) Invalidate(ctx context.Context, userID int64) {
	if u == nil || u.client == nil {
		return
	}
	if err := u.client.Del(ctx, userKey(userID)).Err(); err != nil {
		u.logger.Error("failed to invalidate cached user",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}
