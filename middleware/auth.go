package middleware

import (
	"net/http"
	"strings"

	"oplugy/utils"

	"github.com/gin-gonic/gin"
)

const demoEmailKey = "demoEmail"

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// DemoAuthMiddleware requires a demo bearer token.
func DemoAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		if !utils.IsDemoToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set("authenticated", true)
		c.Set(demoEmailKey, utils.DemoTokenEmail(token))
		c.Next()
	}
}

// OptionalDemoAuthMiddleware marks the request authenticated when a demo
// token is present and lets it through either way.
func OptionalDemoAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok && utils.IsDemoToken(token) {
			c.Set("authenticated", true)
			c.Set(demoEmailKey, utils.DemoTokenEmail(token))
		}
		c.Next()
	}
}

// DemoEmail returns the email of the authenticated demo user, if any.
func DemoEmail(c *gin.Context) string {
	return c.GetString(demoEmailKey)
}
