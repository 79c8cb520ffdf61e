package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const errUnauthorized = "Unauthorized"

// definerContextKey is where Auth stores the authenticated definer
// string, the same "user@host" identity MySQL records on CREATE EVENT.
const definerContextKey = "definer"

// Auth validates a Bearer JWT and sets "definer" in the gin context from
// its subject claim. Every admin-surface mutation records this value on
// the EventRecord it creates or touches.
func Auth(jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		rawToken := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		definer, ok := claims["sub"].(string)
		if !ok || definer == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(definerContextKey, definer)
		c.Next()
	}
}

// DefinerFromContext extracts the authenticated definer set by Auth.
func DefinerFromContext(c *gin.Context) string {
	definer, _ := c.Get(definerContextKey)
	s, _ := definer.(string)
	return s
}
