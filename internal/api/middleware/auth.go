package middleware

import (
	"strings"

	"kaienv/internal/gateway"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token against the session store
// and loads the caller's account and role into the request context.
func AuthMiddleware(gw gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(401, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		session, err := gw.SessionByToken(parts[1])
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		role := "user"
		if profile, err := gw.GetProfile(session.AccountID); err == nil {
			if profile.Disabled {
				c.JSON(403, gin.H{"error": "Account disabled"})
				c.Abort()
				return
			}
			role = profile.Role
		}

		c.Set("account", session.Account)
		c.Set("account_id", session.AccountID)
		c.Set("role", role)
		c.Next()
	}
}

// RequireRole aborts unless the authenticated caller holds the role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, exists := c.Get("role")
		if !exists || current != role {
			c.JSON(403, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}
