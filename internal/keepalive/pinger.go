// Package keepalive periodically requests the proxy's own health endpoint so
// that hosting platforms which idle inactive services keep it awake.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"

	"odoo-proxy/internal/config"
	"odoo-proxy/internal/metrics"
)

// HealthPath is the endpoint pinged on the proxy's own external URL.
const HealthPath = "/health"

// DefaultPingTimeout bounds a single ping request.
const DefaultPingTimeout = 10 * time.Second

// Pinger issues GET <self_url>/health on a fixed interval. It is idle until
// Start is called and shares nothing with request handling except metrics.
type Pinger struct {
	target   string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Pinger.
type Option func(*Pinger)

// WithHTTPClient overrides the client used for pings.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pinger) {
		p.client = c
	}
}

// WithInterval overrides the configured ping interval.
func WithInterval(d time.Duration) Option {
	return func(p *Pinger) {
		p.interval = d
	}
}

// NewPinger creates a Pinger for the configured self URL. The metrics
// parameter is optional.
func NewPinger(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Pinger {
	p := &Pinger{
		target:   strings.TrimSuffix(cfg.KeepAlive.SelfURL, "/") + HealthPath,
		interval: cfg.KeepAlive.Interval(),
		client:   &http.Client{Timeout: DefaultPingTimeout},
		logger:   logger.With("component", "keepalive"),
		metrics:  m,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Target returns the URL being pinged.
func (p *Pinger) Target() string {
	return p.target
}

// Start fires one ping in the background and then pings on every interval
// until Stop is called. Calling Start on a running Pinger does nothing.
func (p *Pinger) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("keep-alive pinger started", "target", p.target, "interval", p.interval.String())
	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits for an in-flight ping to finish.
func (p *Pinger) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Info("keep-alive pinger stopped")
}

func (p *Pinger) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.ping(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

// ping performs one request. Failures are logged and counted, never retried.
func (p *Pinger) ping(ctx context.Context) {
	start := time.Now()
	status, err := p.get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("keep-alive ping failed", "target", p.target, "err", err)
		p.record("error")
		return
	}

	p.logger.Info("keep-alive ping",
		"target", p.target,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if status >= 200 && status < 300 {
		p.record("ok")
	} else {
		p.record(strconv.Itoa(status/100) + "xx")
	}
}

func (p *Pinger) get(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build ping request: %w", err)
	}
	req.Header.Set("User-Agent", "odoo-proxy-keepalive")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", p.target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (p *Pinger) record(result string) {
	if p.metrics != nil {
		p.metrics.KeepAlivePings.WithLabelValues(result).Inc()
	}
}

// Register ties the pinger to the application lifecycle when keep-alive is
// active; otherwise it stays idle.
func Register(lc fx.Lifecycle, cfg *config.Config, p *Pinger, logger *slog.Logger) {
	if !cfg.KeepAlive.Active() {
		if cfg.KeepAlive.Enabled {
			logger.Warn("keep-alive enabled but no self URL configured; pinger stays idle")
		}
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			p.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			p.Stop()
			return nil
		},
	})
}
