// Package client provides the upstream HTTP client for Odoo.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"odoo-proxy/internal/config"
	"odoo-proxy/internal/metrics"
	"odoo-proxy/internal/model"
)

// OdooClient sends requests to the upstream Odoo instance.
type OdooClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	breakers   *breakerSet // nil when the circuit breaker is disabled
}

// NewOdooClient creates an OdooClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// Redirects are never followed: Odoo answers /web/login and friends with 303s
// that the caller must see, together with their Set-Cookie headers.
func NewOdooClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *OdooClient {
	dial, handshake := connectTimeouts(cfg.Upstream.Timeout())
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   dial,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: handshake,
	}

	logger = logger.With("component", "odoo_client")

	c := &OdooClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Upstream.Timeout(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger,
		metrics: m,
	}

	if cfg.Upstream.CircuitBreaker.Enabled {
		c.breakers = newBreakerSet(cfg.Upstream.CircuitBreaker, logger, m)
	}

	return c
}

const (
	defaultDialTimeout      = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// connectTimeouts derives the dial and TLS handshake timeouts from the
// overall upstream timeout; neither may exceed it.
func connectTimeouts(total time.Duration) (dial, handshake time.Duration) {
	if total <= 0 {
		return defaultDialTimeout, defaultHandshakeTimeout
	}
	return total, min(total, defaultHandshakeTimeout)
}

// Do executes an HTTP request against the upstream and returns the raw response.
// The caller is responsible for closing the response body.
func (c *OdooClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.roundTrip(req)
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
			c.metrics.UpstreamFailures.WithLabelValues(FailureReason(err)).Inc()
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func (c *OdooClient) roundTrip(req *http.Request) (*http.Response, error) {
	if c.breakers == nil {
		return c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	}
	return c.breakers.do(req.URL.Host, func() (*http.Response, error) {
		return c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	})
}

// DoStream executes a request with a fully buffered body and returns the
// response body as a stream. The caller is responsible for closing the
// returned ReadCloser. The provided context controls the lifetime of the
// upstream request: when the client disconnects, the upstream request is
// canceled too.
func (c *OdooClient) DoStream(ctx context.Context, method, url string, header http.Header, body []byte) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header
	req.ContentLength = int64(len(body))

	return c.Do(req)
}

// FailureReason classifies an upstream error into a bounded metrics label.
func FailureReason(err error) string {
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "connect"
	}
	return "other"
}
