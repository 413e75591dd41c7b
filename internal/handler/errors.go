package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NewNotFoundHandler answers requests that match no route when the catch-all is off.
func NewNotFoundHandler(prefix string) echo.HandlerFunc {
	hint := fmt.Sprintf("Use %s/* for Odoo API requests. Visit / for documentation.", prefix)
	return func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error":   "Not Found",
			"message": fmt.Sprintf("Endpoint %s does not exist", c.Request().URL.RequestURI()),
			"hint":    hint,
		})
	}
}

// NewHTTPErrorHandler returns an echo error handler that renders every error
// as JSON. Echo HTTP errors keep their status; anything else, including
// recovered panics, becomes a 500.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Internal != nil {
				logger.Debug("http error", "status", he.Code, "err", he.Internal)
			}
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(he.Code)
			} else {
				err = c.JSON(he.Code, map[string]string{
					"error":   http.StatusText(he.Code),
					"message": msg,
				})
			}
			if err != nil {
				logger.Error("writing error response", "err", err)
			}
			return
		}

		logger.Error("server error",
			"err", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
		)
		if err := c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Internal Server Error",
			"message": err.Error(),
		}); err != nil {
			logger.Error("writing error response", "err", err)
		}
	}
}
