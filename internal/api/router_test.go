package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alicebob/miniredis/v2"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/db"
	"github.com/newsflow/newsflow/internal/feed"
	"github.com/newsflow/newsflow/internal/models"
	"github.com/newsflow/newsflow/internal/queue"
	"github.com/newsflow/newsflow/internal/users"
	"github.com/newsflow/newsflow/pkg/config"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *queue.FanoutEvent) error { return nil }

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{}, &models.Post{}, &models.PostMedia{}, &models.Follow{}))

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
	userRepo := db.NewUserRepository(repo)
	postRepo := db.NewPostRepository(repo)
	followRepo := db.NewFollowRepository(repo)

	index := cache.NewFeedIndex(client, cfg)
	postCache := cache.NewPostCache(client, cfg)
	userCache := cache.NewUserCache(client, cfg)

	fanout := feed.NewFanout(followRepo, noopPublisher{})
	feedService := feed.NewService(userRepo, postRepo, followRepo, index, postCache, userCache, fanout, cfg)
	userService := users.NewService(userRepo, followRepo, index)

	engine := gin.New()
	router := NewRouter(feedService, userService, &db.DB{DB: gdb}, nil)
	router.SetupRoutes(engine)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func createUserViaAPI(t *testing.T, engine *gin.Engine, username string) int64 {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/users",
		fmt.Sprintf(`{"username":%q,"email":"%s@example.com"}`, username, username))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user.ID
}

func TestRouter_Health(t *testing.T) {
	engine := setupRouter(t)

	for _, path := range []string{"/health", "/.well-known/healthcheck.json"} {
		rec := doJSON(t, engine, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"OK"`)
	}
}

func TestRouter_CreateUser(t *testing.T) {
	engine := setupRouter(t)

	id := createUserViaAPI(t, engine, "alice")
	assert.NotZero(t, id)

	rec := doJSON(t, engine, http.MethodPost, "/api/users",
		`{"username":"bob","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/users", `{"username":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_FollowEndpoints(t *testing.T) {
	engine := setupRouter(t)

	alice := createUserViaAPI(t, engine, "alice")
	bob := createUserViaAPI(t, engine, "bob")

	followPath := fmt.Sprintf("/api/users/%d/follow/%d", bob, alice)

	rec := doJSON(t, engine, http.MethodPost, followPath, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, followPath, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/users/%d/follow/%d", bob, bob), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/users/%d/follow/%d", bob, 9999), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/users/%d/followers", alice), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)

	rec = doJSON(t, engine, http.MethodDelete, followPath, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodDelete, followPath, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_PostAndFeed(t *testing.T) {
	engine := setupRouter(t)

	alice := createUserViaAPI(t, engine, "alice")
	bob := createUserViaAPI(t, engine, "bob")

	rec := doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/users/%d/follow/%d", bob, alice), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/feed/posts",
		fmt.Sprintf(`{"userId":%d,"content":"first post","mediaUrls":["https://img.example/a.png"]}`, alice))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/feed?userId=%d", bob), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp feed.FeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "first post", resp.Posts[0].Content)
	assert.Equal(t, "alice", resp.Posts[0].User.Username)
	assert.Equal(t, []string{"https://img.example/a.png"}, resp.Posts[0].MediaURLs)
	assert.False(t, resp.HasMore)
}

func TestRouter_FeedValidation(t *testing.T) {
	engine := setupRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/feed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/feed?userId=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/feed?userId=1&cursor=xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/feed?userId=9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CreatePostValidation(t *testing.T) {
	engine := setupRouter(t)

	alice := createUserViaAPI(t, engine, "alice")

	rec := doJSON(t, engine, http.MethodPost, "/api/feed/posts",
		fmt.Sprintf(`{"userId":%d}`, alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/feed/posts",
		`{"userId":9999,"content":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MonitorMetrics(t *testing.T) {
	engine := setupRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/monitor/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var metrics map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Contains(t, metrics, "memory")
	assert.Contains(t, metrics, "redis")
	assert.Contains(t, metrics, "database")
}
