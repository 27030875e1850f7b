package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"iprescribe-console/internal/auth"
)

const claimsContextKey = "claims"

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// RequireBearer rejects requests without a valid bearer token with the
// iPrescribe error envelope and status 401.
func RequireBearer(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated.", "status": http.StatusUnauthorized})
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated.", "status": http.StatusUnauthorized})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// RequireRole must run after RequireBearer.
func RequireRole(slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated.", "status": http.StatusUnauthorized})
			return
		}
		for _, r := range claims.Roles {
			if r == slug {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden.", "status": http.StatusForbidden})
	}
}
