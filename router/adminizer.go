package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"olafo/controllers"

	"github.com/gin-gonic/gin"
)

// Adminizer blocks access unless the request carries "Bearer <token>".
func Adminizer(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}
		given := strings.TrimSpace(h[len("Bearer "):])
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			controllers.RespondError(c, "admin required", http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
