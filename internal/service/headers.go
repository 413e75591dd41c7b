package service

import (
	"net/http"
	"strconv"

	"odoo-proxy/internal/config"
)

// droppedRequestHeaders never travel upstream. Host is rebuilt from the
// resolved URL by the HTTP client and Content-Length is recomputed from the
// encoded body.
var droppedRequestHeaders = map[string]bool{
	"Host":                   true,
	"Content-Length":         true,
	config.HeaderOdooBaseURL: true,
}

// forwardableResponseHeaders are the only response headers relayed to the client.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":        true,
	"Content-Length":      true,
	"Content-Encoding":    true,
	"Content-Disposition": true,
	"Cache-Control":       true,
	"Date":                true,
	"Expires":             true,
	"Last-Modified":       true,
	"Etag":                true,
	"Location":            true,
	"Set-Cookie":          true,
}

// filterRequestHeaders copies every inbound header except the dropped ones
// and sets Content-Length to the encoded body size.
func filterRequestHeaders(src http.Header, bodyLen int) http.Header {
	dst := make(http.Header, len(src)+1)
	for key, vals := range src {
		if droppedRequestHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	dst.Set("Content-Length", strconv.Itoa(bodyLen))
	return dst
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[key] = vals
		}
	}
	return dst
}
