package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"odoo-proxy/internal/config"
	"odoo-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The metrics collector is optional; a nil value leaves the metrics path unrouted.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/health", health.Health)
	e.GET("/proxy/status", health.Status)
	e.GET("/", health.Index)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	prefix := cfg.Proxy.Prefix
	e.Any(prefix, proxy.Handle)
	e.Any(prefix+"/*", proxy.Handle)

	if cfg.Proxy.CatchAll {
		e.Any("/*", proxy.Handle)
		return
	}
	e.RouteNotFound("/*", NewNotFoundHandler(prefix))
}
