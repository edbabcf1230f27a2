// Package proxy implements the per-request orchestrator pipeline:
// route by Host, reverse-map the path, dispatch the upstream request,
// forward-map the response, and reply.
package proxy

import (
	"os"

	"github.com/liweitianux/wikiproxy/internal/httpclient"
)

// IncomingRequest is the request descriptor built by the listener
// collaborator (out of this module's scope) from the raw client
// request.
type IncomingRequest struct {
	ClientIP  string
	UserAgent string
	Host      string // verbatim Host header, may include ":port"
	Scheme    string // "http" or "https"
	Method    string
	Path      string
	RawQuery  string
	Headers   *httpclient.Headers
	// Body holds the request body when the listener kept it in memory.
	// BodyFile, when non-empty, points at a temp file the listener
	// spilled a large body to; it takes precedence over Body.
	Body     []byte
	BodyFile string
}

// ReadBody returns the request body, reading the spilled temp file if
// the listener handed one over instead of in-memory bytes.
func (r *IncomingRequest) ReadBody() ([]byte, error) {
	if r.BodyFile != "" {
		return os.ReadFile(r.BodyFile)
	}
	return r.Body, nil
}

// OutgoingResponse is what the orchestrator hands back to the listener
// for it to write to the client.
type OutgoingResponse struct {
	StatusCode int
	Headers    *httpclient.Headers
	Trailers   *httpclient.Headers
	Body       []byte
}

func badRequest(body string) *OutgoingResponse {
	h := httpclient.NewHeaders()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &OutgoingResponse{StatusCode: 400, Headers: h, Body: []byte(body)}
}

func notFound(body string) *OutgoingResponse {
	h := httpclient.NewHeaders()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &OutgoingResponse{StatusCode: 404, Headers: h, Body: []byte(body)}
}
