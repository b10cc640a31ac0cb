package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers every ledger response carries.
// Record contents are PHI, so nothing may be cached or framed.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			h.Set("X-Frame-Options", "DENY")

			// Legacy XSS filter off; CSP below covers it.
			h.Set("X-XSS-Protection", "0")

			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// HSTS, one year.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// Do not send Referer header to downstream services.
			h.Set("Referrer-Policy", "no-referrer")

			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")

			return next(c)
		}
	}
}
