package service

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"odoo-proxy/internal/config"
)

var (
	// ErrMissingUpstream is returned when neither a fixed URL, a permitted
	// X-Odoo-Base-Url header, nor ODOO_BASE_URL yields an upstream.
	ErrMissingUpstream = errors.New("Odoo Base URL not provided")

	// ErrInvalidUpstream is returned when the supplied base URL is not an absolute http(s) URL.
	ErrInvalidUpstream = errors.New("invalid Odoo base URL")

	// ErrUpstreamNotAllowed is returned when a header-supplied host is outside upstream.allowed_hosts.
	ErrUpstreamNotAllowed = errors.New("Odoo host not allowed")
)

// Resolver picks the upstream base URL for a request:
// fixed URL, then (if enabled) the X-Odoo-Base-Url header, then the
// configured default.
type Resolver struct {
	fixed        *url.URL
	fallback     *url.URL
	allowHeader  bool
	allowedHosts map[string]bool
}

// NewResolver builds a Resolver from upstream settings. URLs are parsed once here.
func NewResolver(cfg config.UpstreamConfig) (*Resolver, error) {
	r := &Resolver{allowHeader: cfg.AllowHeaderOverride}

	var err error
	if cfg.FixedURL != "" {
		if r.fixed, err = parseBaseURL(cfg.FixedURL); err != nil {
			return nil, fmt.Errorf("parse upstream fixed_url: %w", err)
		}
	}
	if cfg.BaseURL != "" {
		if r.fallback, err = parseBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("parse upstream base_url: %w", err)
		}
	}
	if len(cfg.AllowedHosts) > 0 {
		r.allowedHosts = make(map[string]bool, len(cfg.AllowedHosts))
		for _, h := range cfg.AllowedHosts {
			r.allowedHosts[strings.ToLower(h)] = true
		}
	}

	return r, nil
}

// Resolve returns the base URL for a request with the given headers.
func (r *Resolver) Resolve(header http.Header) (*url.URL, error) {
	if r.fixed != nil {
		return r.fixed, nil
	}

	if r.allowHeader {
		if raw := strings.TrimSpace(header.Get(config.HeaderOdooBaseURL)); raw != "" {
			u, err := parseBaseURL(raw)
			if err != nil {
				return nil, err
			}
			if r.allowedHosts != nil && !r.allowedHosts[strings.ToLower(u.Hostname())] {
				return nil, fmt.Errorf("%w: %s", ErrUpstreamNotAllowed, u.Hostname())
			}
			return u, nil
		}
	}

	if r.fallback != nil {
		return r.fallback, nil
	}

	return nil, ErrMissingUpstream
}

// parseBaseURL accepts only absolute http(s) URLs with a host.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpstream, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUpstream, raw)
	}
	return u, nil
}

// buildUpstreamURL appends the escaped inbound path to the base URL's own
// path and carries the inbound query through untouched. Percent-encoded
// characters such as %2F reach the upstream as sent.
func buildUpstreamURL(base *url.URL, escapedPath, rawQuery string) string {
	u := *base
	if escapedPath == "" {
		escapedPath = "/"
	}
	raw := strings.TrimSuffix(base.EscapedPath(), "/") + escapedPath
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path = p
		u.RawPath = raw
	} else {
		u.Path = strings.TrimSuffix(base.Path, "/") + escapedPath
		u.RawPath = ""
	}
	u.RawQuery = rawQuery
	u.Fragment = ""
	return u.String()
}

// StripPrefix removes the proxy mount prefix from an inbound escaped path.
// Paths outside the prefix are returned unchanged.
func StripPrefix(path, prefix string) string {
	if prefix == "" {
		return path
	}
	if path == prefix {
		return "/"
	}
	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix):]
	}
	return path
}
