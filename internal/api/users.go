package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/newsflow/newsflow/internal/users"
)

// UserHandler exposes user and follow-graph operations
type UserHandler struct {
	service *users.Service
}

// NewUserHandler creates a user handler
func NewUserHandler(service *users.Service) *UserHandler {
	return &UserHandler{service: service}
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Follow handles POST /api/users/:id/follow/:targetId
func (h *UserHandler) Follow(c *gin.Context) {
	followerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "targetId")
	if !ok {
		return
	}
	if err := h.service.Follow(c.Request.Context(), followerID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Unfollow handles DELETE /api/users/:id/follow/:targetId
func (h *UserHandler) Unfollow(c *gin.Context) {
	followerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "targetId")
	if !ok {
		return
	}
	if err := h.service.Unfollow(c.Request.Context(), followerID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Following handles GET /api/users/:id/following
func (h *UserHandler) Following(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.service.Following(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Followers handles GET /api/users/:id/followers
func (h *UserHandler) Followers(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.service.Followers(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return id, true
}
