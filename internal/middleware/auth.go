package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/pkg/jwt"
	"github.com/traveldiary/server/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	// TokenCookie is the cookie set on login.
	TokenCookie = "token"
)

// Auth returns a middleware that enforces JWT authentication.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ValidateToken(extractToken(c))
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.UnauthorizedMsg(c, "Session expired, please sign in again")
				return
			}
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not block the request.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := ValidateToken(extractToken(c)); err == nil {
			c.Set(ContextKeyUserID, userID)
		}
		c.Next()
	}
}

// ValidateToken validates a raw token and returns the authenticated user id.
func ValidateToken(rawToken string) (string, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return "", errors.New("token is required")
	}
	claims, err := jwt.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

// extractToken looks at the Authorization header, then the session cookie, then ?token=.
func extractToken(c *gin.Context) string {
	if auth := NormalizeToken(c.GetHeader("Authorization")); auth != "" {
		return auth
	}
	if raw, err := c.Cookie(TokenCookie); err == nil {
		if token := NormalizeToken(raw); token != "" {
			return token
		}
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
