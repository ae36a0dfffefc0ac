package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newsflow/newsflow/internal/feed"
	"github.com/newsflow/newsflow/internal/users"
)

// respondError maps domain errors to client-facing responses. Cache faults
// never reach this point; only validation, not-found, conflict and durable
// store failures do.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feed.ErrUserNotFound), errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrAlreadyFollowing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, feed.ErrContentInvalid),
		errors.Is(err, users.ErrSelfFollow),
		errors.Is(err, users.ErrNotFollowing),
		errors.Is(err, users.ErrInvalidUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
