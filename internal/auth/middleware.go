package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/moodguard/internal/logging"
)

const (
	// ContextKeyClaims holds the verified *Claims in the gin context.
	ContextKeyClaims = "authClaims"
	// HeaderAdminSecret carries the administrator secret.
	HeaderAdminSecret = "X-Admin-Secret"
)

// Middleware verifies the Authorization header when present and stores the
// claims in the context. Invalid tokens are ignored here; RequireAuth rejects.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			if claims, err := v.Parse(header); err == nil {
				c.Set(ContextKeyClaims, claims)
				c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), claims.UserID()))
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "Bearer token required. Include 'Authorization: Bearer <token>' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireSession rejects tokens that carry no session ID. Gate routes need one.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSessionID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing_session",
				"message": "Token carries no session id.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin guards administrator routes. With a configured secret the
// X-Admin-Secret header must match it. With no secret (development mode) any
// authenticated caller is treated as an administrator.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			if !IsAuthenticated(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error":   "unauthorized",
					"message": "Authentication required.",
				})
				return
			}
			c.Next()
			return
		}

		given := c.GetHeader(HeaderAdminSecret)
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "forbidden",
				"message": "Administrator access required.",
			})
			return
		}
		c.Next()
	}
}

// GetClaims returns the verified claims, if any.
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// GetUserID returns the authenticated user ID or "".
func GetUserID(c *gin.Context) string {
	if claims, ok := GetClaims(c); ok {
		return claims.UserID()
	}
	return ""
}

// GetSessionID returns the token's session ID or "".
func GetSessionID(c *gin.Context) string {
	if claims, ok := GetClaims(c); ok {
		return claims.SessionID
	}
	return ""
}

// IsAuthenticated reports whether a valid token was presented.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetClaims(c)
	return ok
}

// AdminID names the administrator for audit fields.
func AdminID(c *gin.Context) string {
	if id := GetUserID(c); id != "" {
		return id
	}
	return "admin"
}
