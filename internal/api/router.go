package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/db"
	"github.com/newsflow/newsflow/internal/feed"
	"github.com/newsflow/newsflow/internal/users"
	"github.com/newsflow/newsflow/pkg/logging"
)

// Router sets up API routes
type Router struct {
	feedHandler    *FeedHandler
	userHandler    *UserHandler
	monitorHandler *MonitorHandler
	logger         *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(feedService *feed.Service, userService *users.Service, database *db.DB, redisCache *cache.Cache) *Router {
	return &Router{
		feedHandler:    NewFeedHandler(feedService),
		userHandler:    NewUserHandler(userService),
		monitorHandler: NewMonitorHandler(database, redisCache),
		logger:         logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// Monitoring
	engine.GET("/monitor/metrics", r.monitorHandler.Metrics)

	api := engine.Group("/api")
	{
		api.POST("/feed/posts", r.feedHandler.CreatePost)
		api.GET("/feed", r.feedHandler.GetFeed)

		api.POST("/users", r.userHandler.CreateUser)
		api.GET("/users/:id", r.userHandler.GetUser)
		api.POST("/users/:id/follow/:targetId", r.userHandler.Follow)
		api.DELETE("/users/:id/follow/:targetId", r.userHandler.Unfollow)
		api.GET("/users/:id/following", r.userHandler.Following)
		api.GET("/users/:id/followers", r.userHandler.Followers)
	}
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "newsflow-api",
	})
}
