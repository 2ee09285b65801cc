package middleware

import (
	"net/http"
	"strings"

	"github.com/creditoya/backend/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id"
	ContextRUT    = "rut"
)

type Authenticator interface {
	Authenticate(token string) (*auth.Claims, error)
}

// RequireAuth accepts the access token as "Authorization: Bearer <token>"
// or, failing that, from the access cookie.
func RequireAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if cookie, err := c.Request.Cookie(auth.AccessCookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authenticator.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRUT, claims.RUT)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func UserID(c *gin.Context) int64 {
	return c.GetInt64(ContextUserID)
}

func RUT(c *gin.Context) string {
	return c.GetString(ContextRUT)
}
