// Package service implements the core proxy forwarding logic.
package service

import (
	"fmt"
	"log/slog"
	"net/url"

	"odoo-proxy/internal/client"
	"odoo-proxy/internal/config"
	"odoo-proxy/internal/model"
)

// ProxyService resolves the Odoo upstream for a request and forwards it.
type ProxyService struct {
	client   *client.OdooClient
	resolver *Resolver
	logger   *slog.Logger
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.OdooClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	r, err := NewResolver(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	return &ProxyService{
		client:   c,
		resolver: r,
		logger:   logger.With("component", "proxy_service"),
	}, nil
}

// Forward sends a ProxyRequest to the resolved Odoo upstream and returns the
// response. The caller is responsible for closing the response body.
//
// Resolution errors wrap ErrMissingUpstream, ErrInvalidUpstream or
// ErrUpstreamNotAllowed; anything else is an upstream failure.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	base, err := s.resolver.Resolve(pr.Header)
	if err != nil {
		return nil, err
	}

	upstreamURL := buildUpstreamURL(base, pr.Path, pr.RawQuery)

	body, err := EncodeBody(pr.Header.Get("Content-Type"), pr.Body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	header := filterRequestHeaders(pr.Header, len(body))

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"target", redactURL(upstreamURL),
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, upstreamURL, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = filterResponseHeaders(resp.Header)
	return resp, nil
}

// redactURL strips userinfo so credentials embedded in a base URL never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
