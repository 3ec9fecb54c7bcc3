package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/utils"
)

const UserNameHeader = "x-user-name"

// SessionMiddleware carries the user name set by the fronting application, used to stamp
// recorded_by on payments. Authentication happens upstream.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.GetHeader(UserNameHeader))
		if username == "" {
			c.Next()
			return
		}
		if len(username) > 100 {
			username = username[:100]
		}
		c.Request = c.Request.WithContext(utils.SetUserNameInContext(c.Request.Context(), username))
		c.Next()
	}
}
