package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server/respond"
)

const operatorKey = "operator"

// Auth validates the static operator token. When no token is configured the
// API runs open, which is only acceptable for local development; production
// deploys set API_TOKEN.
func Auth(apiToken string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(apiToken))

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		if len(expected) == 0 {
			c.Set(operatorKey, "dev")
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(operatorKey, "operator")
		c.Next()
	}
}

// OperatorFromContext fetches the operator label set by the auth middleware.
func OperatorFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(operatorKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
