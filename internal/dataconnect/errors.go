package dataconnect

import (
	"fmt"
	"strings"
)

// GraphQLError is one entry of a response's "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// OperationError reports GraphQL errors returned alongside a 2xx response.
// Any partial data has already been decoded when it is returned.
type OperationError struct {
	Operation string
	Errors    []GraphQLError
}

func (e *OperationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return fmt.Sprintf("dataconnect: %s: %s", e.Operation, strings.Join(msgs, "; "))
}

// HTTPError reports a non-2xx response from the API.
type HTTPError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("dataconnect: %s: status %d: %s", e.Operation, e.StatusCode, body)
}
