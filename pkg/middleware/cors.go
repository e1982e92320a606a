package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4/middleware"
)

// AllowedMethods are the only methods the checkout frontend needs.
var AllowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
}

// CORSConfig returns the CORS configuration for the checkout API.
// Only the configured frontend origins may call it from a browser; the webhook
// endpoint is server-to-server and is unaffected by CORS.
func CORSConfig(origins ...string) middleware.CORSConfig {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			allowed = append(allowed, o)
		}
	}

	return middleware.CORSConfig{
		AllowOrigins: allowed,
		AllowMethods: AllowedMethods,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Idempotency-Key",
		},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        600,
	}
}
