package service

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// BodyKind is the encoding policy chosen for a request body.
type BodyKind int

const (
	// BodyRaw bodies are forwarded byte for byte.
	BodyRaw BodyKind = iota
	// BodyXML bodies are forwarded byte for byte and never treated as JSON.
	BodyXML
	// BodyJSON bodies are parsed and re-serialized as compact JSON text.
	BodyJSON
)

// ClassifyBody picks the encoding policy from a Content-Type header value.
// XML is checked first so that XML-RPC payloads can never be routed through
// the JSON path.
func ClassifyBody(contentType string) BodyKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}

	switch {
	case mediaType == "text/xml", mediaType == "application/xml", strings.HasSuffix(mediaType, "+xml"):
		return BodyXML
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return BodyJSON
	default:
		return BodyRaw
	}
}

// EncodeBody returns the bytes to send upstream for a body of the given
// content type. JSON bodies are compacted; a JSON content type with a body
// that does not parse is forwarded verbatim, as is everything else.
func EncodeBody(contentType string, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, nil
	}

	switch ClassifyBody(contentType) {
	case BodyJSON:
		if !json.Valid(body) {
			return body, nil
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return body, nil
	}
}
