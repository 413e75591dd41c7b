// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/odoo-proxy/config.toml",
	"configs/config.toml",
}

// HeaderOdooBaseURL carries a client-supplied upstream base URL. It is never
// forwarded upstream.
const HeaderOdooBaseURL = "X-Odoo-Base-Url"

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config              string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host                string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port                int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	FixedURL            string `kong:"name='fixed-url',help='Operator-fixed Odoo URL; disables every per-request override.',env='ODOO_FIXED_URL'"`
	OdooBaseURL         string `kong:"name='odoo-base-url',help='Default Odoo base URL (overrides config).',env='ODOO_BASE_URL'"`
	AllowHeaderOverride bool   `kong:"name='allow-header-override',help='Honor the X-Odoo-Base-Url request header.',env='ODOO_ALLOW_HEADER_OVERRIDE'"`
	CatchAll            bool   `kong:"name='catch-all',help='Forward unmatched paths upstream verbatim instead of returning 404.',env='PROXY_CATCH_ALL'"`
	KeepAlive           bool   `kong:"name='keepalive',help='Enable the keep-alive pinger.',env='RENDER'"`
	SelfURL             string `kong:"name='self-url',help='Externally reachable URL of this proxy, used for keep-alive pings.',env='RENDER_EXTERNAL_URL'"`
	LogLevel            string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Proxy     ProxyConfig     `toml:"proxy"`
	CORS      CORSConfig      `toml:"cors"`
	KeepAlive KeepAliveConfig `toml:"keepalive"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds the Odoo upstream resolution and connection settings.
type UpstreamConfig struct {
	FixedURL            string               `toml:"fixed_url"`
	BaseURL             string               `toml:"base_url"`
	AllowHeaderOverride bool                 `toml:"allow_header_override"`
	AllowedHosts        []string             `toml:"allowed_hosts"`
	TimeoutSeconds      int                  `toml:"timeout_seconds"`
	IdleConnections     int                  `toml:"idle_connections"`
	CircuitBreaker      CircuitBreakerConfig `toml:"circuit_breaker"`
}

// CircuitBreakerConfig controls the per-host upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled     bool `toml:"enabled"`
	MaxFailures int  `toml:"max_failures"`
	OpenSeconds int  `toml:"open_seconds"`
}

// ProxyConfig controls which inbound paths are forwarded.
type ProxyConfig struct {
	Prefix   string `toml:"prefix"`
	CatchAll bool   `toml:"catch_all"`
}

// CORSConfig holds the headers advertised on preflight responses.
type CORSConfig struct {
	AllowMethods  []string `toml:"allow_methods"`
	AllowHeaders  []string `toml:"allow_headers"`
	MaxAgeSeconds int      `toml:"max_age_seconds"`
}

// KeepAliveConfig controls the self-ping loop used on platforms that idle
// inactive services.
type KeepAliveConfig struct {
	Enabled         bool   `toml:"enabled"`
	SelfURL         string `toml:"self_url"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/odoo-proxy/config.toml then configs/config.toml. Unlike an explicit
// path, a missing search path is not an error: the proxy can run from
// environment variables alone.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.FixedURL != "" {
		c.Upstream.FixedURL = cli.FixedURL
	}
	if cli.OdooBaseURL != "" {
		c.Upstream.BaseURL = cli.OdooBaseURL
	}
	if cli.AllowHeaderOverride {
		c.Upstream.AllowHeaderOverride = true
	}
	if cli.CatchAll {
		c.Proxy.CatchAll = true
	}
	if cli.KeepAlive {
		c.KeepAlive.Enabled = true
	}
	if cli.SelfURL != "" {
		c.KeepAlive.SelfURL = cli.SelfURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Upstream URLs are optional; a missing URL surfaces per request as a 400.
	if err := validateHTTPURL("upstream.fixed_url", c.Upstream.FixedURL); err != nil {
		return err
	}
	if err := validateHTTPURL("upstream.base_url", c.Upstream.BaseURL); err != nil {
		return err
	}
	for _, h := range c.Upstream.AllowedHosts {
		if h == "" || strings.Contains(h, "/") {
			return fmt.Errorf("upstream.allowed_hosts entries must be bare host names; got %q", h)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.CircuitBreaker.MaxFailures < 0 || c.Upstream.CircuitBreaker.OpenSeconds < 0 {
		return fmt.Errorf("upstream.circuit_breaker values must be non-negative")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.CORS.MaxAgeSeconds < 0 {
		return fmt.Errorf("cors.max_age_seconds must be non-negative; got %d", c.CORS.MaxAgeSeconds)
	}
	if c.KeepAlive.IntervalSeconds < 0 {
		return fmt.Errorf("keepalive.interval_seconds must be non-negative; got %d", c.KeepAlive.IntervalSeconds)
	}
	if err := validateHTTPURL("keepalive.self_url", c.KeepAlive.SelfURL); err != nil {
		return err
	}

	// Proxy prefix.
	if p := c.Proxy.Prefix; p != "" {
		if p[0] != '/' {
			return fmt.Errorf("proxy.prefix must start with '/'; got %q", p)
		}
		if p == "/" || strings.HasSuffix(p, "/") {
			return fmt.Errorf("proxy.prefix must not be '/' or end with '/'; got %q", p)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		prefix := c.Proxy.Prefix
		if prefix == "" {
			prefix = DefaultPrefix
		}
		if p == "/" {
			return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, "/")
		}
		for _, reserved := range []string{prefix, "/health", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// validateHTTPURL accepts an empty value or an absolute http(s) URL with a host.
func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https; got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host; got %q", field, raw)
	}
	return nil
}

// DefaultPrefix is the mount point of prefix-stripped proxy routes.
const DefaultPrefix = "/api/odoo"

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.CircuitBreaker.MaxFailures == 0 {
		c.Upstream.CircuitBreaker.MaxFailures = 5
	}
	if c.Upstream.CircuitBreaker.OpenSeconds == 0 {
		c.Upstream.CircuitBreaker.OpenSeconds = 30
	}
	if c.Proxy.Prefix == "" {
		c.Proxy.Prefix = DefaultPrefix
	}
	if len(c.CORS.AllowMethods) == 0 {
		c.CORS.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowHeaders) == 0 {
		c.CORS.AllowHeaders = []string{"Content-Type", "Authorization", HeaderOdooBaseURL, "Cookie"}
	}
	if c.KeepAlive.IntervalSeconds == 0 {
		c.KeepAlive.IntervalSeconds = 300
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the upstream request timeout.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the keep-alive ping interval.
func (c *KeepAliveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Active reports whether the pinger should run: it needs both the platform
// flag and somewhere to ping.
func (c *KeepAliveConfig) Active() bool {
	return c.Enabled && c.SelfURL != ""
}

// UpstreamMode names the upstream resolution strategy in effect.
func (c *Config) UpstreamMode() string {
	switch {
	case c.Upstream.FixedURL != "":
		return "fixed"
	case c.Upstream.AllowHeaderOverride:
		return "header"
	default:
		return "env"
	}
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

// WarnUpstreamTrust logs a warning when clients may choose the upstream host.
func (c *Config) WarnUpstreamTrust(logger *slog.Logger) {
	if c.UpstreamMode() != "header" {
		return
	}
	if len(c.Upstream.AllowedHosts) == 0 {
		logger.Warn("X-Odoo-Base-Url override enabled without upstream.allowed_hosts; clients can reach arbitrary hosts through this proxy")
		return
	}
	logger.Info("X-Odoo-Base-Url override enabled", "allowed_hosts", c.Upstream.AllowedHosts)
}
