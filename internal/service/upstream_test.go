package service

import (
	"errors"
	"net/http"
	"testing"

	"odoo-proxy/internal/config"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.UpstreamConfig
		header  string
		want    string
		wantErr error
	}{
		{
			name:   "fixed URL is authoritative",
			cfg:    config.UpstreamConfig{FixedURL: "https://fixed.odoo.com", AllowHeaderOverride: true, BaseURL: "https://env.odoo.com"},
			header: "https://client.odoo.com",
			want:   "https://fixed.odoo.com",
		},
		{
			name:   "header used when override enabled",
			cfg:    config.UpstreamConfig{AllowHeaderOverride: true, BaseURL: "https://env.odoo.com"},
			header: "https://client.odoo.com",
			want:   "https://client.odoo.com",
		},
		{
			name:   "header ignored when override disabled",
			cfg:    config.UpstreamConfig{BaseURL: "https://env.odoo.com"},
			header: "https://client.odoo.com",
			want:   "https://env.odoo.com",
		},
		{
			name: "env fallback without header",
			cfg:  config.UpstreamConfig{AllowHeaderOverride: true, BaseURL: "https://env.odoo.com"},
			want: "https://env.odoo.com",
		},
		{
			name:    "nothing configured",
			cfg:     config.UpstreamConfig{AllowHeaderOverride: true},
			wantErr: ErrMissingUpstream,
		},
		{
			name:    "header override disabled and nothing else",
			cfg:     config.UpstreamConfig{},
			header:  "https://client.odoo.com",
			wantErr: ErrMissingUpstream,
		},
		{
			name:    "malformed header",
			cfg:     config.UpstreamConfig{AllowHeaderOverride: true},
			header:  "client.odoo.com",
			wantErr: ErrInvalidUpstream,
		},
		{
			name:    "header scheme rejected",
			cfg:     config.UpstreamConfig{AllowHeaderOverride: true},
			header:  "file:///etc/passwd",
			wantErr: ErrInvalidUpstream,
		},
		{
			name:   "allowlisted header host",
			cfg:    config.UpstreamConfig{AllowHeaderOverride: true, AllowedHosts: []string{"Client.Odoo.com"}},
			header: "https://client.odoo.com",
			want:   "https://client.odoo.com",
		},
		{
			name:    "header host outside allowlist",
			cfg:     config.UpstreamConfig{AllowHeaderOverride: true, AllowedHosts: []string{"client.odoo.com"}},
			header:  "http://169.254.169.254",
			wantErr: ErrUpstreamNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.cfg)
			if err != nil {
				t.Fatalf("NewResolver() error = %v", err)
			}

			header := http.Header{}
			if tt.header != "" {
				header.Set(config.HeaderOdooBaseURL, tt.header)
			}

			got, err := r.Resolve(header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Resolve() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}
