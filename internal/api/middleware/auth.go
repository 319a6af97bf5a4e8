package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cipherchat/internal/services"
)

const (
	ContextUserID   = "userID"
	ContextUsername = "username"
)

type AuthMiddleware struct {
	auth *services.AuthService
}

func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth verifies the bearer token and stores the identity on the
// request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		userID, username, err := am.auth.VerifyIdentity(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUsername, username)
		c.Next()
	}
}

// CurrentUser reads the identity RequireAuth stored.
func CurrentUser(c *gin.Context) (uint, string) {
	userID, _ := c.Get(ContextUserID)
	username, _ := c.Get(ContextUsername)
	id, _ := userID.(uint)
	name, _ := username.(string)
	return id, name
}
