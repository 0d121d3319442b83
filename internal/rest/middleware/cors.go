package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telecare/billingcore/internal/config"
)

// CORSMiddleware lets the portal front end call the billing routes
func CORSMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	origin := cfg.Server.CORSAllowedOrigin
	if origin == "" {
		origin = "*"
	}

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
