package api

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/newsflow/newsflow/internal/cache"
	"github.com/newsflow/newsflow/internal/db"
)

// MonitorHandler reports process, Redis and database stats
type MonitorHandler struct {
	db    *db.DB
	cache *cache.Cache
}

// NewMonitorHandler creates a monitor handler
func NewMonitorHandler(database *db.DB, redisCache *cache.Cache) *MonitorHandler {
	return &MonitorHandler{db: database, cache: redisCache}
}

// Metrics handles GET /monitor/metrics
func (h *MonitorHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	metrics := gin.H{}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics["memory"] = gin.H{
		"heapAlloc":  mem.HeapAlloc,
		"heapSys":    mem.HeapSys,
		"numGC":      mem.NumGC,
		"goroutines": runtime.NumGoroutine(),
	}

	redisInfo := gin.H{"status": "connected"}
	if client := h.cache.Client(); client != nil {
		if err := client.Ping(ctx).Err(); err != nil {
			redisInfo["status"] = "disconnected"
			redisInfo["error"] = err.Error()
		} else if size, err := client.DBSize(ctx).Result(); err == nil {
			redisInfo["keyCount"] = size
		}
	} else {
		redisInfo["status"] = "disabled"
	}
	metrics["redis"] = redisInfo

	dbInfo := gin.H{"status": "connected"}
	if err := h.db.Health(ctx); err != nil {
		dbInfo["status"] = "disconnected"
		dbInfo["error"] = err.Error()
	} else if sqlDB, err := h.db.DB.DB(); err == nil {
		stats := sqlDB.Stats()
		dbInfo["openConnections"] = stats.OpenConnections
		dbInfo["inUse"] = stats.InUse
		dbInfo["idle"] = stats.Idle
	}
	metrics["database"] = dbInfo

	c.JSON(http.StatusOK, metrics)
}
