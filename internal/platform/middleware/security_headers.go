package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers appropriate for an API that
// serves medical records and raw file downloads.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Uploaded files are served with their stored content type;
			// never let the browser second-guess it.
			h.Set("X-Content-Type-Options", "nosniff")

			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// Keep patient identifiers out of Referer headers.
			h.Set("Referrer-Policy", "no-referrer")

			// Responses carry medical data; shared caches must not hold them.
			h.Set("Cache-Control", "no-store, private")

			return next(c)
		}
	}
}
