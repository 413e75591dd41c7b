package middleware

import (
	"github.com/labstack/echo/v4"

	"odoo-proxy/internal/state"
)

// Track returns an Echo middleware that counts every inbound request on the tracker.
func Track(t *state.Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			t.Record()
			return next(c)
		}
	}
}
