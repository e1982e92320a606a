package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serveWithHeaders(t *testing.T, cfg SecurityHeadersConfig, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeaders(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	assert.NoError(t, handler(c))
	return rec
}

func TestSecurityHeaders_DefaultHeaders(t *testing.T) {
	rec := serveWithHeaders(t, SecurityHeadersConfig{}, "/create-payment-intent")

	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'none'")
	assert.Contains(t, csp, "frame-ancestors 'none'")

	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Contains(t, rec.Header().Get("Permissions-Policy"), "camera=()")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSecurityHeaders_DocsPolicy(t *testing.T) {
	rec := serveWithHeaders(t, SecurityHeadersConfig{}, "/swagger/index.html")

	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "script-src 'self' 'unsafe-inline'")
	assert.NotContains(t, csp, "default-src 'none'")
}

func TestSecurityHeaders_CustomValues(t *testing.T) {
	rec := serveWithHeaders(t, SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "no-referrer",
	}, "/webhook")

	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	// Unset fields keep their defaults
	assert.Contains(t, rec.Header().Get("Permissions-Policy"), "microphone=()")
}
