package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"odoo-proxy/internal/config"
)

// CORS returns an Echo middleware that answers preflight requests and adds
// the allow-origin headers to every other response. Install it with e.Pre so
// OPTIONS is handled for any path, routed or not.
//
// The request Origin is echoed back (or "*" when absent) together with
// Access-Control-Allow-Credentials, so cookie-based Odoo sessions work from
// browser clients.
func CORS(cfg config.CORSConfig) echo.MiddlewareFunc {
	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	maxAge := ""
	if cfg.MaxAgeSeconds > 0 {
		maxAge = strconv.Itoa(cfg.MaxAgeSeconds)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" {
				origin = "*"
			}

			header := c.Response().Header()
			header.Add(echo.HeaderVary, echo.HeaderOrigin)
			header.Set(echo.HeaderAccessControlAllowOrigin, origin)
			header.Set(echo.HeaderAccessControlAllowCredentials, "true")

			if c.Request().Method != http.MethodOptions {
				return next(c)
			}

			header.Set(echo.HeaderAccessControlAllowMethods, allowMethods)
			header.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)
			if maxAge != "" {
				header.Set(echo.HeaderAccessControlMaxAge, maxAge)
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}
