package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-webinar/coordinator/internal/auth"
	"github.com/aura-webinar/coordinator/internal/models"
)

func newRouter(svc *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("*"))
	protected := r.Group("/", JWT(svc))
	protected.GET("/me", func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.UserID)
	})
	protected.GET("/mod", RequireRole(models.RoleModerator), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)

	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "garbage").Code)

	token, err := svc.Generate(models.Identity{UserID: "a1", Role: models.RoleAttendee})
	require.NoError(t, err)
	w := do(r, http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "a1", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)

	attendee, err := svc.Generate(models.Identity{UserID: "a1", Role: models.RoleAttendee})
	require.NoError(t, err)
	moderator, err := svc.Generate(models.Identity{UserID: "m1", Role: models.RoleModerator})
	require.NoError(t, err)

	require.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/mod", attendee).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/mod", moderator).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(auth.NewJWTService("secret", 1))
	w := do(r, http.MethodOptions, "/me", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000, https://class.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://class.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "https://class.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	do(r, http.MethodGet, "/sessions/s1", "")
	do(r, http.MethodGet, "/boom", "")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "s1", entries[0].ContextMap()["session_id"])
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
