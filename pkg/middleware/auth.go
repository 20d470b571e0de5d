package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type userContextKey string

const userIDContextKey userContextKey = "userID"

// RequireAuth returns a Gin middleware that validates the bearer token
// against the service's signing key and stores the subject claim for
// downstream handlers.
func RequireAuth(publicKey *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return publicKey, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		c.Set(string(userIDContextKey), sub)
		ctx := context.WithValue(c.Request.Context(), userIDContextKey, sub)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserIDFromGinContext extracts the authenticated user id stored by
// RequireAuth.
func UserIDFromGinContext(c *gin.Context) (string, error) {
	if value, ok := c.Get(string(userIDContextKey)); ok {
		if userID, ok := value.(string); ok && userID != "" {
			return userID, nil
		}
	}
	return "", errors.New("user id not found in context")
}

// UserIDFromContext extracts the authenticated user id from a standard
// context.
func UserIDFromContext(ctx context.Context) (string, error) {
	if value := ctx.Value(userIDContextKey); value != nil {
		if userID, ok := value.(string); ok && userID != "" {
			return userID, nil
		}
	}
	return "", errors.New("user id not found in context")
}
