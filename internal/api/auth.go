package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const userIDKey = "userID"

// AuthMiddleware verifies an HS256 bearer token and stores the caller's id
// (the "sub" claim, or "user_id") in the gin context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		if len(key) == 0 {
			abortAuth(c, "Authentication is not configured")
			return
		}

		tokenString := extractToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			abortAuth(c, "Authentication required")
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortAuth(c, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortAuth(c, "Invalid token claims")
			return
		}

		userID := claimString(claims, "sub")
		if userID == "" {
			userID = claimString(claims, "user_id")
		}
		if userID == "" {
			abortAuth(c, "Token has no subject")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func extractToken(authHeader string) string {
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

func claimString(claims jwt.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func abortAuth(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  "AUTH_REQUIRED",
	})
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
