package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	contextPlayerID = "player_id"
	contextRole     = "role"
)

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			log.Debug("token validation failed", zap.Error(err))
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid or expired token")
			return
		}

		session, err := SessionFromClaims(claims)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid token subject")
			return
		}

		c.Set(contextPlayerID, session.PlayerID)
		c.Set(contextRole, session.Role)
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), session))

		c.Next()
	}
}

// RequireRole rejects authenticated callers without the role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := RequireAuth(c.Request.Context())
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
			return
		}
		if session.Role != role {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
			return
		}
		c.Next()
	}
}

// GetPlayerID retrieves the player ID from the context
func GetPlayerID(c *gin.Context) (uuid.UUID, bool) {
	playerID, exists := c.Get(contextPlayerID)
	if !exists {
		return uuid.Nil, false
	}

	id, ok := playerID.(uuid.UUID)
	return id, ok
}
