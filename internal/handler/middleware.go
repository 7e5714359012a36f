package handler

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUser carries the gateway-verified wallet of the caller. The
// gateway strips any client-supplied value before forwarding, so the
// header is trusted as-is here.
const HeaderUser = "X-Fliq-User"

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,"+HeaderUser)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequireBearerMiddleware enforces the presence of the gateway's bearer
// token on API routes. Token validation happens upstream; this only
// rejects traffic that bypassed the gateway entirely.
func RequireBearerMiddleware() gin.HandlerFunc {
	disabled := strings.EqualFold(os.Getenv("FQ_AUTH_DISABLED"), "true") || os.Getenv("FQ_AUTH_DISABLED") == "1"
	requireGatewayHeader := strings.EqualFold(os.Getenv("FQ_REQUIRE_GATEWAY"), "true") || os.Getenv("FQ_REQUIRE_GATEWAY") == "1"

	return func(c *gin.Context) {
		if disabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		// Keep infra endpoints open.
		if p == "/healthz" || p == "/readyz" {
			c.Next()
			return
		}
		if strings.HasPrefix(p, "/api/") || p == "/docs" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(auth, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
				return
			}
			if requireGatewayHeader {
				if strings.TrimSpace(c.GetHeader(HeaderUser)) == "" {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUser})
					return
				}
			}
		}
		c.Next()
	}
}

func callerWallet(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderUser))
}
