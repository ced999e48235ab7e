package api

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────
// Firebase ID Token Authentication Middleware
//
// Every C10 callable requires a caller identity (spec.md §4.10): the
// teacher's bearer-token middleware is generalized here from a single
// shared static secret to per-caller Firebase ID tokens, verified
// against the project's Auth service and mapped to a uid in context.
// ──────────────────────────────────────────────────────────────────

// callerUIDKey is the gin context key AuthMiddleware sets on success.
const callerUIDKey = "callerUID"

// AuthMiddleware verifies the bearer Firebase ID token on every
// callable request and sets the caller's uid in the gin context.
func AuthMiddleware(client *auth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			writeError(c, http.StatusUnauthorized, "unauthenticated", "missing or malformed Authorization header")
			c.Abort()
			return
		}

		token, err := client.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			writeError(c, http.StatusUnauthorized, "unauthenticated", "invalid or expired ID token")
			c.Abort()
			return
		}

		c.Set(callerUIDKey, token.UID)
		c.Next()
	}
}

// callerUID reads the uid AuthMiddleware attached to the request.
func callerUID(c *gin.Context) string {
	v, _ := c.Get(callerUIDKey)
	uid, _ := v.(string)
	return uid
}
