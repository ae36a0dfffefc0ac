package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/newsflow/newsflow/internal/feed"
)

// FeedHandler exposes post creation and feed reads
type FeedHandler struct {
	service *feed.Service
}

// NewFeedHandler creates a feed handler
func NewFeedHandler(service *feed.Service) *FeedHandler {
	return &FeedHandler{service: service}
}

type createPostRequest struct {
	UserID    int64    `json:"userId" binding:"required"`
	Content   string   `json:"content" binding:"required"`
	MediaURLs []string `json:"mediaUrls"`
}

// CreatePost handles POST /api/feed/posts
func (h *FeedHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.service.CreatePost(c.Request.Context(), req.UserID, req.Content, req.MediaURLs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// GetFeed handles GET /api/feed?userId=&cursor=&limit=
func (h *FeedHandler) GetFeed(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	var cursor *int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cursor must be a post id"})
			return
		}
		cursor = &parsed
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	resp, err := h.service.GetFeed(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
