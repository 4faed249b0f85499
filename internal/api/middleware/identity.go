package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// Identity resolves the acting owner from the X-Owner-ID header set by
// the API gateway after it validates the session. This service trusts
// the gateway; it only parses and attaches the identity.
func Identity(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Owner-ID")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "missing owner identity",
			})
			c.Abort()
			return
		}

		ownerID, err := uuid.Parse(raw)
		if err != nil {
			log.Warn("Malformed owner identity header", "value", raw, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "malformed owner identity",
			})
			c.Abort()
			return
		}

		c.Set("owner_id", ownerID)
		c.Next()
	}
}

// AdminOnly gates operational endpoints behind the gateway's admin role
// header
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Role") != "operator" {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    "FORBIDDEN",
				"message": "operator role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
