package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(cfg CORSConfig) *echo.Echo {
	e := echo.New()
	e.Use(CORS(cfg))
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func TestCORS_Preflight(t *testing.T) {
	e := corsServer(CORSConfig{
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		ExposeHeaders: []string{echo.HeaderRetryAfter},
	})
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set(echo.HeaderOrigin, "http://dash.local")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dash.local", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, echo.HeaderRetryAfter, rec.Header().Get(echo.HeaderAccessControlExposeHeaders))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	e := corsServer(CORSConfig{AllowOrigins: []string{"http://dash.local"}})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderOrigin, "http://evil.local")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORS_NoOriginWildcard(t *testing.T) {
	e := corsServer(CORSConfig{AllowOrigins: []string{"*"}})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "http://any.local"))
	assert.True(t, OriginAllowed([]string{"*"}, "http://any.local"))
	assert.True(t, OriginAllowed([]string{"http://dash.local"}, "http://dash.local"))
	assert.False(t, OriginAllowed([]string{"http://dash.local"}, "http://evil.local"))
}
