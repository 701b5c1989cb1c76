// Package middleware - JWT bearer authentication.
//
// Tokens are issued by the main FiCore app; this service only verifies them.
// The webhook route is NOT behind this middleware: Monnify authenticates with
// the HMAC signature instead.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AuthUserIDKey = "auth_user_id"
	AuthRoleKey   = "auth_role"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims is the verified token payload.
type Claims struct {
	UserID uuid.UUID
	Role   string
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier func(token string) (*Claims, error)

// JWTVerifier builds a TokenVerifier over an HMAC signing secret.
func JWTVerifier(secret string) TokenVerifier {
	key := []byte(secret)
	return func(tokenString string) (*Claims, error) {
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
		if err != nil {
			return nil, err
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			return nil, fmt.Errorf("invalid token claims")
		}

		sub, err := claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("token missing subject: %w", err)
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return nil, fmt.Errorf("token subject is not a user id: %w", err)
		}

		role := RoleUser
		if r, ok := claims["role"].(string); ok && r != "" {
			role = r
		}
		return &Claims{UserID: userID, Role: role}, nil
	}
}

// Auth verifies the Authorization header and stores the claims.
func Auth(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithUnauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortWithUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := verify(parts[1])
		if err != nil {
			abortWithUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(AuthUserIDKey, claims.UserID)
		c.Set(AuthRoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole guards admin-only routes. Runs after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	roleMap := make(map[string]bool)
	for _, role := range roles {
		roleMap[role] = true
	}

	return func(c *gin.Context) {
		if !roleMap[GetAuthRole(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Insufficient permissions",
				},
				"request_id": GetRequestID(c),
				"timestamp":  time.Now().UTC(),
			})
			return
		}
		c.Next()
	}
}

func abortWithUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
		"request_id": GetRequestID(c),
		"timestamp":  time.Now().UTC(),
	})
}

// GetAuthUserID returns the authenticated user's id, or uuid.Nil.
func GetAuthUserID(c *gin.Context) uuid.UUID {
	if id, exists := c.Get(AuthUserIDKey); exists {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

// GetAuthRole returns the authenticated user's role.
func GetAuthRole(c *gin.Context) string {
	if role, exists := c.Get(AuthRoleKey); exists {
		if strRole, ok := role.(string); ok {
			return strRole
		}
	}
	return ""
}
