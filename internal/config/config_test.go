package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to a config.toml in a fresh temp dir and returns its path.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880

[upstream]
base_url = "https://example.odoo.com"
allow_header_override = true
allowed_hosts = ["example.odoo.com", "staging.odoo.com"]
timeout_seconds = 60
idle_connections = 50

[proxy]
prefix = "/odoo"
catch_all = true

[keepalive]
enabled = true
self_url = "https://proxy.onrender.com"
interval_seconds = 600

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Upstream.BaseURL != "https://example.odoo.com" {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, "https://example.odoo.com")
	}
	if !cfg.Upstream.AllowHeaderOverride {
		t.Error("Upstream.AllowHeaderOverride = false, want true")
	}
	if len(cfg.Upstream.AllowedHosts) != 2 {
		t.Errorf("Upstream.AllowedHosts = %v, want 2 entries", cfg.Upstream.AllowedHosts)
	}
	if cfg.Upstream.Timeout() != 60*time.Second {
		t.Errorf("Upstream.Timeout() = %v, want %v", cfg.Upstream.Timeout(), 60*time.Second)
	}
	if cfg.Proxy.Prefix != "/odoo" || !cfg.Proxy.CatchAll {
		t.Errorf("Proxy = %+v, want prefix /odoo with catch-all", cfg.Proxy)
	}
	if !cfg.KeepAlive.Active() {
		t.Error("KeepAlive.Active() = false, want true")
	}
	if cfg.KeepAlive.Interval() != 10*time.Minute {
		t.Errorf("KeepAlive.Interval() = %v, want %v", cfg.KeepAlive.Interval(), 10*time.Minute)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	orig := configSearchPaths
	configSearchPaths = []string{filepath.Join(t.TempDir(), "missing.toml")}
	t.Cleanup(func() { configSearchPaths = orig })

	cfg, err := Load(&CLI{})
	if err != nil {
		t.Fatalf("Load() error = %v; a missing search path should fall back to defaults", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Upstream.BaseURL != "" {
		t.Errorf("Upstream.BaseURL = %q, want empty", cfg.Upstream.BaseURL)
	}
}

func TestLoad_EmptyUpstreamAllowed(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 3001
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v; empty upstream should be allowed for per-request resolution", err)
	}
	if cfg.UpstreamMode() != "env" {
		t.Errorf("UpstreamMode() = %q, want %q", cfg.UpstreamMode(), "env")
	}
}

func TestLoad_InvalidUpstreamURL(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"ftp scheme", "[upstream]\nbase_url = \"ftp://example.odoo.com\"\n"},
		{"no host", "[upstream]\nbase_url = \"https://\"\n"},
		{"relative fixed url", "[upstream]\nfixed_url = \"example.odoo.com\"\n"},
		{"bad self url", "[keepalive]\nself_url = \"not a url\"\n"},
		{"allowed host with path", "[upstream]\nallowed_hosts = [\"example.com/x\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(cliWithPath(writeConfig(t, tt.data)))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_HTTPUpstreamAccepted(t *testing.T) {
	path := writeConfig(t, `
[upstream]
base_url = "http://localhost:8069"
`)

	if _, err := Load(cliWithPath(path)); err != nil {
		t.Fatalf("Load() error = %v; plain HTTP Odoo should be accepted", err)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "verbose"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for invalid log level, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[upstream]
base_url = "https://example.odoo.com"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Server.BodyMaxBytes != 10*1024*1024 {
		t.Errorf("default Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 10*1024*1024)
	}
	if cfg.Upstream.TimeoutSeconds != 30 {
		t.Errorf("default Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 30)
	}
	if cfg.Proxy.Prefix != "/api/odoo" {
		t.Errorf("default Proxy.Prefix = %q, want %q", cfg.Proxy.Prefix, "/api/odoo")
	}
	if cfg.Proxy.CatchAll {
		t.Error("default Proxy.CatchAll = true, want false")
	}
	if got := strings.Join(cfg.CORS.AllowHeaders, ", "); got != "Content-Type, Authorization, X-Odoo-Base-Url, Cookie" {
		t.Errorf("default CORS.AllowHeaders = %q", got)
	}
	if cfg.KeepAlive.Interval() != 5*time.Minute {
		t.Errorf("default KeepAlive.Interval() = %v, want %v", cfg.KeepAlive.Interval(), 5*time.Minute)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("default Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/config.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing explicit file, got nil")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 8000

[upstream]
base_url = "https://toml.odoo.com"

[log]
level = "info"
`)

	cli := &CLI{
		Config:              path,
		Host:                "127.0.0.1",
		Port:                3000,
		FixedURL:            "https://fixed.odoo.com",
		OdooBaseURL:         "https://env.odoo.com",
		AllowHeaderOverride: true,
		CatchAll:            true,
		KeepAlive:           true,
		SelfURL:             "https://proxy.onrender.com",
		LogLevel:            "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (CLI override)", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d (CLI override)", cfg.Server.Port, 3000)
	}
	if cfg.Upstream.BaseURL != "https://env.odoo.com" {
		t.Errorf("Upstream.BaseURL = %q, want %q (CLI override)", cfg.Upstream.BaseURL, "https://env.odoo.com")
	}
	if cfg.Upstream.FixedURL != "https://fixed.odoo.com" {
		t.Errorf("Upstream.FixedURL = %q, want %q (CLI override)", cfg.Upstream.FixedURL, "https://fixed.odoo.com")
	}
	if cfg.UpstreamMode() != "fixed" {
		t.Errorf("UpstreamMode() = %q, want %q", cfg.UpstreamMode(), "fixed")
	}
	if !cfg.Proxy.CatchAll {
		t.Error("Proxy.CatchAll = false, want true (CLI override)")
	}
	if !cfg.KeepAlive.Active() {
		t.Error("KeepAlive.Active() = false, want true (CLI override)")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (CLI override)", cfg.Log.Level, "debug")
	}
}

func TestKeepAliveActive_RequiresSelfURL(t *testing.T) {
	kc := &KeepAliveConfig{Enabled: true}
	if kc.Active() {
		t.Error("Active() = true without self_url, want false")
	}
}

func TestUpstreamMode(t *testing.T) {
	tests := []struct {
		name string
		up   UpstreamConfig
		want string
	}{
		{"fixed wins over header", UpstreamConfig{FixedURL: "https://a.odoo.com", AllowHeaderOverride: true}, "fixed"},
		{"header override", UpstreamConfig{AllowHeaderOverride: true, BaseURL: "https://b.odoo.com"}, "header"},
		{"env only", UpstreamConfig{BaseURL: "https://b.odoo.com"}, "env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Upstream: tt.up}
			if got := cfg.UpstreamMode(); got != tt.want {
				t.Errorf("UpstreamMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_NegativePort(t *testing.T) {
	_, err := Load(cliWithPath(writeConfig(t, "[server]\nport = -1\n")))
	if err == nil {
		t.Fatal("Load() expected error for negative port, got nil")
	}
}

func TestLoad_NegativeBodyMaxBytes(t *testing.T) {
	_, err := Load(cliWithPath(writeConfig(t, "[server]\nbody_max_bytes = -1\n")))
	if err == nil {
		t.Fatal("Load() expected error for negative body_max_bytes, got nil")
	}
}

func TestLoad_NegativeTimeout(t *testing.T) {
	_, err := Load(cliWithPath(writeConfig(t, "[upstream]\ntimeout_seconds = -5\n")))
	if err == nil {
		t.Fatal("Load() expected error for negative timeout, got nil")
	}
}

func TestLoad_NegativeKeepAliveInterval(t *testing.T) {
	_, err := Load(cliWithPath(writeConfig(t, "[keepalive]\ninterval_seconds = -1\n")))
	if err == nil {
		t.Fatal("Load() expected error for negative keep-alive interval, got nil")
	}
}

func TestLoad_ProxyPrefix(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		wantErr bool
	}{
		{"valid", "/odoo", false},
		{"nested", "/api/v1/odoo", false},
		{"no leading slash", "odoo", true},
		{"root", "/", true},
		{"trailing slash", "/odoo/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(cliWithPath(writeConfig(t, "[proxy]\nprefix = \""+tt.prefix+"\"\n")))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RateLimitConfig_Enabled(t *testing.T) {
	path := writeConfig(t, `
[server.rate_limit]
enabled = true
requests_per_second = 50.0
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Server.RateLimit.Enabled {
		t.Error("expected RateLimit.Enabled = true")
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 50.0 {
		t.Errorf("RateLimit.RequestsPerSecond = %v, want 50.0", cfg.Server.RateLimit.RequestsPerSecond)
	}
}

func TestLoad_RateLimitConfig_BadValue(t *testing.T) {
	path := writeConfig(t, `
[server.rate_limit]
enabled = true
requests_per_second = 0
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for rate limit enabled with requests_per_second=0, got nil")
	}
	if !strings.Contains(err.Error(), "requests_per_second") {
		t.Errorf("error = %q, want mention of requests_per_second", err)
	}
}

func TestLoad_CircuitBreakerDefaults(t *testing.T) {
	path := writeConfig(t, `
[upstream.circuit_breaker]
enabled = true
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cb := cfg.Upstream.CircuitBreaker
	if !cb.Enabled || cb.MaxFailures != 5 || cb.OpenSeconds != 30 {
		t.Errorf("CircuitBreaker = %+v, want enabled with 5 failures / 30s", cb)
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "readable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0600 file, got: %q", buf.String())
	}
}

func TestWarnUpstreamTrust(t *testing.T) {
	tests := []struct {
		name     string
		up       UpstreamConfig
		wantWarn bool
	}{
		{"header without allowlist", UpstreamConfig{AllowHeaderOverride: true}, true},
		{"header with allowlist", UpstreamConfig{AllowHeaderOverride: true, AllowedHosts: []string{"a.odoo.com"}}, false},
		{"fixed", UpstreamConfig{FixedURL: "https://a.odoo.com", AllowHeaderOverride: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Upstream: tt.up}
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			cfg.WarnUpstreamTrust(logger)

			if got := strings.Contains(buf.String(), "arbitrary hosts"); got != tt.wantWarn {
				t.Errorf("warned = %v, want %v (log: %q)", got, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestFindConfigInPaths_Found(t *testing.T) {
	path := writeConfig(t, "[upstream]\nbase_url = \"https://example.odoo.com\"\n")

	got := findConfigInPaths([]string{path})
	if got != path {
		t.Errorf("findConfigInPaths() = %q, want %q", got, path)
	}
}

func TestFindConfigInPaths_NotFound(t *testing.T) {
	got := findConfigInPaths([]string{"/nonexistent/a.toml", "/nonexistent/b.toml"})
	if got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}

func TestFindConfigInPaths_Priority(t *testing.T) {
	path1 := writeConfig(t, "")
	path2 := writeConfig(t, "")

	got := findConfigInPaths([]string{path1, path2})
	if got != path1 {
		t.Errorf("findConfigInPaths() = %q, want first match %q", got, path1)
	}
}

func TestLoad_MetricsPathDefault(t *testing.T) {
	path := writeConfig(t, `
[metrics]
enabled = true
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_MetricsPathNoLeadingSlash(t *testing.T) {
	path := writeConfig(t, `
[metrics]
enabled = true
path = "metrics"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for metrics.path without leading slash, got nil")
	}
	if !strings.Contains(err.Error(), "metrics.path") {
		t.Errorf("error = %q, want mention of metrics.path", err)
	}
}

func TestLoad_MetricsPathConflictsWithReservedRoute(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"proxy prefix exact", "/api/odoo"},
		{"proxy prefix sub", "/api/odoo/metrics"},
		{"health", "/health"},
		{"root", "/"},
		{"proxy/status", "/proxy/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, `
[metrics]
enabled = true
path = "`+tt.path+`"
`)

			_, err := Load(cliWithPath(cfgPath))
			if err == nil {
				t.Fatalf("Load() expected error for metrics.path=%q conflicting with route, got nil", tt.path)
			}
			if !strings.Contains(err.Error(), "conflicts") {
				t.Errorf("error = %q, want mention of conflict", err)
			}
		})
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	path := writeConfig(t, `
[metrics]
enabled = false
path = "bad-no-slash"
`)

	_, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	want := "127.0.0.1:3000"
	if got := sc.Addr(); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
