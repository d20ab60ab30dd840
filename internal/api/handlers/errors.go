package handlers

import (
	"errors"

	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

// writeError maps a domain failure onto the HTTP contract. Anything
// outside the expected taxonomy is an unknown backend failure.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		c.JSON(401, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(403, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(409, gin.H{"error": err.Error()})
	default:
		c.JSON(500, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}
