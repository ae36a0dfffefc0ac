package users

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/db"
	"github.com/newsflow/newsflow/internal/models"
	"github.com/newsflow/newsflow/pkg/config"
)

func newTestService(t *testing.T) (*Service, *cache.FeedIndex, *miniredis.Miniredis) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.User{}, &models.Follow{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.FeedConfig{
		MaxFeedSize:        1000,
		FeedTTL:            time.Hour,
		PostTTL:            2 * time.Hour,
		UserTTL:            30 * time.Minute,
		MaxCachedPosts:     1000,
		CacheMissThreshold: 100,
		DefaultLimit:       20,
		MaxLimit:           100,
	}

	repo := db.NewRepository(gdb)
	index := cache.NewFeedIndex(client, cfg)
	service := NewService(db.NewUserRepository(repo), db.NewFollowRepository(repo), index)
	return service, index, mr
}

func mustCreateUser(t *testing.T, service *Service, username string) *models.User {
	t.Helper()
	user, err := service.CreateUser(context.Background(), username, username+"@example.com")
	require.NoError(t, err)
	return user
}

func TestService_CreateUser(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "  alice  ", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)

	_, err = service.CreateUser(ctx, "   ", "blank@example.com")
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = service.CreateUser(ctx, strings.Repeat("x", 51), "long@example.com")
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestService_GetProfile(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, service, "alice")
	bob := mustCreateUser(t, service, "bob")
	carol := mustCreateUser(t, service, "carol")

	require.NoError(t, service.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, service.Follow(ctx, carol.ID, alice.ID))
	require.NoError(t, service.Follow(ctx, alice.ID, bob.ID))

	profile, err := service.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.EqualValues(t, 2, profile.FollowersCount)
	assert.EqualValues(t, 1, profile.FollowingCount)

	_, err = service.GetProfile(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Follow(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, service, "alice")
	bob := mustCreateUser(t, service, "bob")

	require.NoError(t, service.Follow(ctx, bob.ID, alice.ID))

	following, err := service.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, following)

	assert.ErrorIs(t, service.Follow(ctx, bob.ID, alice.ID), ErrAlreadyFollowing)
	assert.ErrorIs(t, service.Follow(ctx, bob.ID, bob.ID), ErrSelfFollow)
	assert.ErrorIs(t, service.Follow(ctx, bob.ID, 9999), ErrUserNotFound)
	assert.ErrorIs(t, service.Follow(ctx, 9999, alice.ID), ErrUserNotFound)
}

func TestService_Unfollow(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, service, "alice")
	bob := mustCreateUser(t, service, "bob")

	assert.ErrorIs(t, service.Unfollow(ctx, bob.ID, alice.ID), ErrNotFollowing)

	require.NoError(t, service.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, service.Unfollow(ctx, bob.ID, alice.ID))

	following, err := service.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestService_FollowInvalidatesOnlyFollowerFeed(t *testing.T) {
	service, index, mr := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, service, "alice")
	bob := mustCreateUser(t, service, "bob")
	carol := mustCreateUser(t, service, "carol")

	// Warm feed entries for both bob and carol.
	index.AddPost(ctx, bob.ID, 100)
	index.AddPost(ctx, carol.ID, 100)

	require.NoError(t, service.Follow(ctx, bob.ID, alice.ID))

	assert.False(t, mr.Exists(fmt.Sprintf("feed:user:%d", bob.ID)))
	assert.True(t, mr.Exists(fmt.Sprintf("feed:user:%d", carol.ID)))

	index.AddPost(ctx, bob.ID, 101)
	require.NoError(t, service.Unfollow(ctx, bob.ID, alice.ID))

	assert.False(t, mr.Exists(fmt.Sprintf("feed:user:%d", bob.ID)))
	assert.True(t, mr.Exists(fmt.Sprintf("feed:user:%d", carol.ID)))
}

func TestService_FollowingAndFollowers(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, service, "alice")
	bob := mustCreateUser(t, service, "bob")
	carol := mustCreateUser(t, service, "carol")

	require.NoError(t, service.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, service.Follow(ctx, carol.ID, alice.ID))

	followers, err := service.Followers(ctx, alice.ID)
	require.NoError(t, err)
	names := make([]string, len(followers))
	for i, u := range followers {
		names[i] = u.Username
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, names)

	following, err := service.Following(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "alice", following[0].Username)

	_, err = service.Followers(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
