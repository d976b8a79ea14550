// Package auth verifies bearer tokens and exposes the request's subject and
// role to downstream middleware. Token issuance lives in the identity
// service; the gateway only validates.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/pkg/models"
)

// Claims are the token fields the gateway cares about.
type Claims struct {
	UserID string
	Role   models.Role
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HMAC-signed JWT and extracts the gateway claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return &Claims{
		UserID: claims.Subject,
		Role:   models.Role(claims.Role),
	}, nil
}

// TokenFromRequest pulls the bearer token from the Authorization header or,
// for WebSocket handshakes where browsers cannot set headers, from the
// "token" query parameter.
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// Middleware authenticates every request on the route and stores userID and
// role on the context for the rate limiter and handlers.
func Middleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			unauthorized(c, "Authorization header required")
			return
		}

		claims, err := ParseToken(tokenString, secret)
		if err != nil {
			logger.Debug("Token validation failed", zap.Error(err))
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("role", string(claims.Role))
		c.Next()
	}
}

// RequireAdmin gates a route group on the ADMIN role. Must run after
// Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if models.Role(c.GetString("role")) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Admin role required",
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
