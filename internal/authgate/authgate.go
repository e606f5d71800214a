// Package authgate implements the Auth Gate (spec.md §4.8): validates
// the single shared Pollux key on every non-OAuth request. Grounded in
// the teacher's internal/middleware/unified_auth.go UnifiedAuth
// middleware (multi-source key extraction: Authorization Bearer,
// x-goog-api-key, query parameter) but replacing its plain `!=`
// comparison with crypto/subtle constant-time comparison, since a
// single gateway-wide shared key is a more attractive timing-attack
// target than the teacher's per-deployment management key.
package authgate

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeshanjun/pollux/internal/apierr"
	"github.com/yeshanjun/pollux/internal/httpformat"
)

// Middleware returns a gin.HandlerFunc that validates requiredKey
// against any of: Authorization: Bearer <key>, x-goog-api-key: <key>,
// ?key=<key>. An empty requiredKey disables the gate (local/dev use).
func Middleware(requiredKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if requiredKey == "" {
			c.Next()
			return
		}

		provided := extractKey(c)
		if provided == "" || !constantTimeEqual(provided, requiredKey) {
			respondUnauthorized(c)
			return
		}

		c.Set("pollux_key", provided)
		c.Next()
	}
}

func extractKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[len("Bearer "):])
		}
		return strings.TrimSpace(auth)
	}
	if key := c.GetHeader("x-goog-api-key"); key != "" {
		return key
	}
	return c.Query("key")
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func respondUnauthorized(c *gin.Context) {
	apiErr := apierr.New(apierr.KindAuthRejected, "invalid or missing API key")
	format := httpformat.DetectFromContext(c)
	body, err := apiErr.ToJSON(format)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apiErr.Message})
		return
	}
	c.Data(http.StatusUnauthorized, "application/json", body)
	c.Abort()
}
