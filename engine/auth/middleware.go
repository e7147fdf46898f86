package auth

import (
	"net/http"
	"strings"

	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/gin-gonic/gin"
)

// HeaderName is the request header carrying the caller's secret.
const HeaderName = "X-API-Key"

// Middleware authenticates every request through the Gate before it reaches
// an engine operation.
type Middleware struct {
	gate Gate
}

// NewMiddleware creates a new authentication middleware instance.
func NewMiddleware(gate Gate) *Middleware {
	return &Middleware{gate: gate}
}

// Authenticate is the gin handler for API key authentication. Every failure
// mode returns the same 401 body so callers cannot enumerate keys.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())
		presented := strings.TrimSpace(c.GetHeader(HeaderName))
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		key, err := m.gate.Authenticate(c.Request.Context(), presented)
		if err != nil {
			log.Debug("API key validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Request = c.Request.WithContext(ContextWithKey(c.Request.Context(), key))
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated key grants at least
// the given role. It must run after Authenticate.
func (m *Middleware) RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := KeyFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		if !key.Role.AtLeast(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
