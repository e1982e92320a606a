package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeadersConfig holds configuration for the security headers middleware.
// All fields are optional; empty strings fall back to secure defaults.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	ReferrerPolicy        string
	PermissionsPolicy     string
	// DocsPrefix is served with DocsContentSecurityPolicy instead, so the Swagger UI can load.
	DocsPrefix                string
	DocsContentSecurityPolicy string
}

// DefaultSecurityHeadersConfig returns the defaults for a JSON-only API.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "camera=(), microphone=(), geolocation=(), payment=()",
		DocsPrefix:            "/swagger/",
		DocsContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; frame-ancestors 'none'",
	}
}

// SecurityHeaders returns an Echo middleware that sets Content-Security-Policy,
// Referrer-Policy, Permissions-Policy and X-Content-Type-Options on every response.
func SecurityHeaders(config SecurityHeadersConfig) echo.MiddlewareFunc {
	defaults := DefaultSecurityHeadersConfig()

	if config.ContentSecurityPolicy == "" {
		config.ContentSecurityPolicy = defaults.ContentSecurityPolicy
	}
	if config.ReferrerPolicy == "" {
		config.ReferrerPolicy = defaults.ReferrerPolicy
	}
	if config.PermissionsPolicy == "" {
		config.PermissionsPolicy = defaults.PermissionsPolicy
	}
	if config.DocsPrefix == "" {
		config.DocsPrefix = defaults.DocsPrefix
	}
	if config.DocsContentSecurityPolicy == "" {
		config.DocsContentSecurityPolicy = defaults.DocsContentSecurityPolicy
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			if strings.HasPrefix(c.Request().URL.Path, config.DocsPrefix) {
				h.Set("Content-Security-Policy", config.DocsContentSecurityPolicy)
			} else {
				h.Set("Content-Security-Policy", config.ContentSecurityPolicy)
			}
			h.Set("Referrer-Policy", config.ReferrerPolicy)
			h.Set("Permissions-Policy", config.PermissionsPolicy)
			h.Set("X-Content-Type-Options", "nosniff")
			return next(c)
		}
	}
}
