package handler

import (
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"odoo-proxy/internal/config"
	"odoo-proxy/internal/state"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the health, status and index endpoints.
type HealthHandler struct {
	cfg     *config.Config
	tracker *state.Tracker
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, tracker *state.Tracker, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, tracker: tracker, version: v}
}

type healthResponse struct {
	OK          bool       `json:"ok"`
	Status      string     `json:"status"`
	Uptime      float64    `json:"uptime"`
	Requests    int64      `json:"requests"`
	LastRequest *time.Time `json:"lastRequest"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Health answers liveness probes. It never touches the upstream, so it
// reports healthy regardless of earlier proxy failures.
func (h *HealthHandler) Health(c echo.Context) error {
	snap := h.tracker.Snapshot()

	resp := healthResponse{
		OK:        true,
		Status:    "healthy",
		Uptime:    snap.Uptime.Seconds(),
		Requests:  snap.Requests,
		Timestamp: time.Now().UTC(),
	}
	if !snap.LastRequest.IsZero() {
		resp.LastRequest = &snap.LastRequest
	}

	return c.JSON(http.StatusOK, resp)
}

type statusResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	UpstreamMode string `json:"upstream_mode"`
	Prefix       string `json:"prefix"`
	CatchAll     bool   `json:"catch_all"`
	KeepAlive    bool   `json:"keepalive"`
}

// Status returns proxy status information. Upstream URLs are not reported.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:       "ok",
		Version:      string(h.version),
		UpstreamMode: h.cfg.UpstreamMode(),
		Prefix:       h.cfg.Proxy.Prefix,
		CatchAll:     h.cfg.Proxy.CatchAll,
		KeepAlive:    h.cfg.KeepAlive.Active(),
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Odoo Proxy Server</title>
  <style>
    body { font-family: Arial, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #f0f0f5; }
    .container { background: white; padding: 40px; border-radius: 10px; box-shadow: 0 10px 25px rgba(0,0,0,0.2); }
    .status { color: #4CAF50; font-weight: bold; }
    code { background: #ddd; padding: 2px 6px; border-radius: 3px; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Odoo Proxy Server</h1>
    <p class="status">Proxy Server is Running</p>
    <p>This server handles CORS-enabled requests to your Odoo instance.</p>
    <h3>Available Endpoints:</h3>
    <p><code>/health</code> - Health check</p>
    <p><code>/proxy/status</code> - Proxy configuration summary</p>
    <p><code>{{.Prefix}}/*</code> - All Odoo API requests (proxied to your Odoo server)</p>
    {{- if .CatchAll}}
    <p><code>/*</code> - Any other path is forwarded to Odoo unchanged</p>
    {{- end}}
    {{- if .HeaderOverride}}
    <p><strong>Upstream Header:</strong> <code>{{.Header}}</code> (your Odoo server URL)</p>
    {{- end}}
    <p><small>version {{.Version}}</small></p>
  </div>
</body>
</html>
`))

// Index renders a small HTML page listing the available endpoints.
func (h *HealthHandler) Index(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return indexTemplate.Execute(c.Response(), struct {
		Prefix         string
		CatchAll       bool
		HeaderOverride bool
		Header         string
		Version        string
	}{
		Prefix:         h.cfg.Proxy.Prefix,
		CatchAll:       h.cfg.Proxy.CatchAll,
		HeaderOverride: h.cfg.UpstreamMode() == "header",
		Header:         config.HeaderOdooBaseURL,
		Version:        string(h.version),
	})
}
