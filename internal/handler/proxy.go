package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"odoo-proxy/internal/config"
	"odoo-proxy/internal/model"
	"odoo-proxy/internal/service"
)

// ProxyHandler forwards requests to the resolved Odoo upstream.
type ProxyHandler struct {
	service *service.ProxyService
	prefix  string
	mode    string
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		prefix:  cfg.Proxy.Prefix,
		mode:    cfg.UpstreamMode(),
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request upstream and streams the response back.
// Paths under the mount prefix have it stripped; any other path (reached
// through the catch-all route) is forwarded verbatim.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			// Body limit violations surface as *echo.HTTPError and keep their 413.
			return fmt.Errorf("read request body: %w", err)
		}
	}

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     service.StripPrefix(req.URL.EscapedPath(), h.prefix),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Add keeps every Set-Cookie value.
	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire, so a failed copy can only be logged.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	h.logger.Debug("proxied",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
	)

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	if errors.Is(err, service.ErrMissingUpstream) {
		h.logger.Warn("no upstream configured", "path", path, "upstream_mode", h.mode)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "Odoo Base URL not provided",
			"message": missingUpstreamMessage(h.mode),
		})
	}

	if errors.Is(err, service.ErrInvalidUpstream) {
		h.logger.Warn("invalid upstream", "err", err, "path", path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "Invalid Odoo Base URL",
			"message": err.Error(),
		})
	}

	if errors.Is(err, service.ErrUpstreamNotAllowed) {
		h.logger.Warn("upstream host rejected", "err", err, "path", path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "Odoo Base URL not allowed",
			"message": err.Error(),
		})
	}

	h.logger.Error("proxy error",
		"err", err,
		"path", path,
	)

	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":   "Proxy Error",
		"message": err.Error(),
	})
}

// missingUpstreamMessage tells the caller how an upstream can be supplied in
// the running mode. The header is only suggested when it is honored.
func missingUpstreamMessage(mode string) string {
	if mode == "header" {
		return "Please provide " + config.HeaderOdooBaseURL + " header or set ODOO_BASE_URL environment variable"
	}
	return "Set the ODOO_BASE_URL environment variable or upstream.base_url in the config file (the " +
		config.HeaderOdooBaseURL + " header is disabled)"
}
