// Package dataconnect is a typed client for the "example" Data Connect
// connector of the houseofsheelaa service. Each operation has a Ref
// constructor naming the operation and an executor on Client.
package dataconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultEndpoint is the production Data Connect API host.
const DefaultEndpoint = "https://firebasedataconnect.googleapis.com"

// apiVersion is the REST API version segment.
const apiVersion = "v1beta"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// ConnectorConfig identifies a connector within a Data Connect service.
type ConnectorConfig struct {
	Connector string
	Service   string
	Location  string
}

// DefaultConnectorConfig is the connector the generated operations belong to.
var DefaultConnectorConfig = ConnectorConfig{
	Connector: "example",
	Service:   "houseofsheelaa",
	Location:  "us-east4",
}

// Name returns the connector's full resource name within a project.
func (c ConnectorConfig) Name(project string) string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s/connectors/%s",
		project, c.Location, c.Service, c.Connector)
}

// Client executes connector operations over the Data Connect REST API.
type Client struct {
	project    string
	connector  ConnectorConfig
	endpoint   string
	httpClient *http.Client
	token      oauth2.TokenSource
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at another API host, such as a local emulator.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource authenticates every call with tokens from ts.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.token = ts
	}
}

// WithConnector overrides DefaultConnectorConfig.
func WithConnector(cfg ConnectorConfig) Option {
	return func(c *Client) {
		c.connector = cfg
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the given Firebase project.
func NewClient(project string, opts ...Option) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("dataconnect: project is required")
	}

	c := &Client{
		project:    project,
		connector:  DefaultConnectorConfig,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token != nil {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *c.httpClient
		hc.Transport = &oauth2.Transport{Source: c.token, Base: base}
		c.httpClient = &hc
	}
	c.logger = c.logger.With("component", "dataconnect")

	return c, nil
}

// Connector returns the connector this client targets.
func (c *Client) Connector() ConnectorConfig {
	return c.connector
}

type executeRequest struct {
	Name          string `json:"name"`
	OperationName string `json:"operationName"`
	Variables     any    `json:"variables,omitempty"`
}

type executeResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// execute runs one operation and decodes its data into out. GraphQL errors
// are returned as *OperationError after any partial data has been decoded.
func (c *Client) execute(ctx context.Context, kind OperationKind, operation string, vars, out any) error {
	name := c.connector.Name(c.project)
	url := fmt.Sprintf("%s/%s/%s:%s", c.endpoint, apiVersion, name, kind.method())

	payload, err := json.Marshal(executeRequest{
		Name:          name,
		OperationName: operation,
		Variables:     vars,
	})
	if err != nil {
		return fmt.Errorf("dataconnect: encode %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("dataconnect: build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Client", "odoo-proxy-dataconnect")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dataconnect: %s: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("dataconnect: read %s response: %w", operation, err)
	}

	c.logger.Debug("operation executed",
		"operation", operation,
		"kind", kind.String(),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result executeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("dataconnect: decode %s response: %w", operation, err)
	}

	if len(result.Data) > 0 && string(result.Data) != "null" {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("dataconnect: decode %s data: %w", operation, err)
		}
	}

	if len(result.Errors) > 0 {
		return &OperationError{Operation: operation, Errors: result.Errors}
	}
	return nil
}
