package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ScrapeAuth guards the metrics endpoint with a static token sent either as
// "Authorization: Bearer <token>" or as X-API-Key. An empty token leaves the
// endpoint open.
func ScrapeAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "INVALID_SCRAPE_TOKEN", "message": "Invalid or missing metrics token"}})
			return
		}
		c.Next()
	}
}
