package handlers

import (
	"errors"
	"net/http"

	"reservation-market/internal/marketerrors"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error to its HTTP status. Rate limited
// responses carry retry_after_seconds so clients can render a countdown.
func respondError(c *gin.Context, err error) {
	if rle, ok := marketerrors.IsRateLimited(err); ok {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "rate limited",
			"retry_after_seconds": rle.RemainingSeconds,
		})
		return
	}

	switch {
	case errors.Is(err, marketerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, marketerrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, marketerrors.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, marketerrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
