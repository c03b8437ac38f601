package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/models"
)

func newRouter(jwtService *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(jwtService))
	r.GET("/me", func(c *gin.Context) {
		caller, _ := CallerFrom(c)
		c.String(http.StatusOK, caller.UserID)
	})
	r.POST("/events", RequireRole(models.RoleOrganizer, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := svc.Generate(models.Caller{UserID: "u-7", Role: models.RoleAttendee})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-7", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)

	for role, want := range map[models.Role]int{
		models.RoleAttendee:  http.StatusForbidden,
		models.RoleOrganizer: http.StatusCreated,
		models.RoleAdmin:     http.StatusCreated,
	} {
		tok, err := svc.Generate(models.Caller{UserID: "u", Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, string(role))
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
