package middleware

import (
	"github.com/14kear/online_voting/voting-engine/internal/lib/jwt"
	"github.com/gin-gonic/gin"
	"net/http"
	"strings"
)

// Context keys set by the middleware.
const (
	UserIDKey  = "userID"
	ManagerKey = "manager"
)

type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: secret}
}

// Middleware rejects requests without a valid bearer access token.
func (m *AuthMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractTokenFromHeader(c.GetHeader("Authorization"))
		if accessToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
			return
		}

		if !m.authenticate(c, accessToken) {
			return
		}
		c.Next()
	}
}

// Optional identifies the caller when a token is present and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractTokenFromHeader(c.GetHeader("Authorization"))
		if accessToken == "" {
			c.Next()
			return
		}

		if !m.authenticate(c, accessToken) {
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context, accessToken string) bool {
	claims, err := jwt.ParseAccessToken(accessToken, m.secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}

	c.Set(UserIDKey, claims.UserID)
	c.Set(ManagerKey, claims.Has(jwt.PermManagePolls))
	return true
}

func extractTokenFromHeader(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
