package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// ContextCaller is the gin context key holding the models.Caller.
const ContextCaller = "caller"

// JWT returns a middleware that validates the bearer token and stores the
// caller in the context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextCaller, claims.Caller())
		c.Next()
	}
}

// CallerFrom returns the authenticated caller set by JWT.
func CallerFrom(c *gin.Context) (models.Caller, bool) {
	v, ok := c.Get(ContextCaller)
	if !ok {
		return models.Caller{}, false
	}
	caller, ok := v.(models.Caller)
	return caller, ok
}

// MustCaller returns the caller set by JWT and panics if the route is not
// behind it.
func MustCaller(c *gin.Context) models.Caller {
	return c.MustGet(ContextCaller).(models.Caller)
}
