package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const principalContextKey = "objectdPrincipal"

// Middleware resolves the caller's principal from the Authorization header. It never rejects
// a request; handlers decide what anonymous callers may do.
func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := Anonymous
		if token := extractBearerToken(c.GetHeader("Authorization")); token != "" {
			principal = a.Authenticate(token)
		}
		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by Middleware, defaulting to Anonymous.
func CurrentPrincipal(c *gin.Context) Principal {
	if v, ok := c.Get(principalContextKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Anonymous
}

// IsRoot reports whether the request was made by the root principal.
func IsRoot(c *gin.Context) bool {
	return CurrentPrincipal(c) == Root
}

// RequireRoot aborts with 403 unless the caller is root.
func RequireRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsRoot(c) {
			c.AbortWithStatusJSON(403, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
