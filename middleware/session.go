package middleware

import (
	"strings"

	"oplugy/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TabSessionMiddleware resolves the browser tab's session id from the
// X-Session-ID header, issuing a fresh one when it is missing or malformed.
// The id is echoed back so the storefront can keep it for the tab.
func TabSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tab := strings.TrimSpace(c.GetHeader(utils.TabSessionHeader))
		if _, err := uuid.Parse(tab); err != nil {
			tab = uuid.New().String()
		}
		c.Set(utils.TabSessionKey, tab)
		c.Header(utils.TabSessionHeader, tab)
		c.Next()
	}
}

// TabID returns the tab session id resolved by TabSessionMiddleware.
func TabID(c *gin.Context) string {
	return c.GetString(utils.TabSessionKey)
}
