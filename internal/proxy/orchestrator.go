package proxy

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liweitianux/wikiproxy/internal/admission"
	"github.com/liweitianux/wikiproxy/internal/httpclient"
	"github.com/liweitianux/wikiproxy/internal/telemetry"
	"github.com/liweitianux/wikiproxy/internal/urlmap"
)

// rewritableContentTypes are the MIME types (charset parameters
// stripped) whose bodies get forward-mapped.
var rewritableContentTypes = map[string]bool{
	"text/html":       true,
	"text/javascript": true,
	"text/css":        true,
}

// Orchestrator runs the per-request proxy pipeline.
type Orchestrator struct {
	bindings map[string]*urlmap.Binding // keyed by proxy_host
	gate     *admission.Gate
	client   *httpclient.Client
	log      *zap.Logger
	metrics  *telemetry.Metrics
}

// New builds an Orchestrator over a fixed set of bindings.
func New(bindings []*urlmap.Binding, gate *admission.Gate, client *httpclient.Client, log *zap.Logger) *Orchestrator {
	byHost := make(map[string]*urlmap.Binding, len(bindings))
	for _, b := range bindings {
		byHost[b.ProxyHost] = b
	}
	return &Orchestrator{
		bindings: byHost,
		gate:     gate,
		client:   client,
		log:      log,
		metrics:  telemetry.Default(),
	}
}

// Handle runs one request through the pipeline and returns the response
// to write back to the client. It never returns a non-nil error; every
// failure mode is represented as an OutgoingResponse instead.
func (o *Orchestrator) Handle(req *IncomingRequest) *OutgoingResponse {
	start := time.Now()
	resp := o.handle(req)
	o.logAccess(req, resp, time.Since(start))
	return resp
}

func (o *Orchestrator) handle(req *IncomingRequest) *OutgoingResponse {
	// 1. Admission gate.
	decision := o.gate.Check(req.ClientIP, req.UserAgent)
	if decision.BadRequest {
		return badRequest(decision.Body)
	}
	if !decision.Admitted {
		h := httpclient.NewHeaders()
		return &OutgoingResponse{StatusCode: decision.StatusCode, Headers: h, Body: []byte(decision.Body)}
	}

	// 2. Binding lookup by Host.
	hostOnly, hport := splitHostPort(req.Host)
	binding, ok := o.bindings[hostOnly]
	if !ok {
		return notFound("not found")
	}

	// 4. Read the request body once, from memory or the listener's
	// spilled temp file.
	body, err := req.ReadBody()
	if err != nil {
		o.log.Warn("reading request body failed", zap.Error(err))
		return badRequest("bad request: cannot proxy request")
	}

	// 5. Reverse-map the path.
	upstreamDomain, upstreamPath := binding.ResolvePath(req.Path)

	// 6. Build upstream headers.
	upstreamHeaders := req.Headers.Clone()
	upstreamHeaders.Set("Host", upstreamDomain)
	upstreamHeaders.Del("Accept-Encoding")

	port := 443
	if req.Scheme == "http" {
		port = 80
	}

	upstreamReq := &httpclient.Request{
		Scheme:  req.Scheme,
		Host:    upstreamDomain,
		Port:    port,
		Method:  req.Method,
		Path:    upstreamPath,
		Query:   req.RawQuery,
		Headers: upstreamHeaders,
	}
	if len(body) > 0 {
		upstreamReq.Body = body
	}

	// 7. Dispatch.
	upstreamResp, err := o.client.Do(upstreamReq)
	if err != nil {
		o.metrics.UpstreamDialError.WithLabelValues(upstreamDomain).Inc()
		o.log.Warn("upstream request failed",
			zap.String("upstream_domain", upstreamDomain),
			zap.String("upstream_path", upstreamPath),
			zap.Error(err),
		)
		return badRequest("bad request: cannot proxy request")
	}

	// 8. Strip hop-by-hop headers the listener owns.
	upstreamResp.Headers.Del("Connection")
	upstreamResp.Headers.Del("Trailer")

	// 9. Forward-map Location and body; recompute Content-Length.
	hportSuffix := hport
	if loc, ok := upstreamResp.Headers.Get("Location"); ok && loc != "" {
		upstreamResp.Headers.Set("Location", binding.RewriteText(loc, hostOnly, hportSuffix))
	}

	contentType, _ := upstreamResp.Headers.Get("Content-Type")
	if rewritableContentTypes[stripContentTypeParams(contentType)] {
		rewritten := binding.RewriteText(string(upstreamResp.Body), hostOnly, hportSuffix)
		if rewritten != string(upstreamResp.Body) {
			o.metrics.RewriteCount.Inc()
		}
		upstreamResp.Body = []byte(rewritten)
		upstreamResp.Headers.Set("Content-Length", strconv.Itoa(len(upstreamResp.Body)))
	}

	return &OutgoingResponse{
		StatusCode: upstreamResp.StatusCode,
		Headers:    upstreamResp.Headers,
		Trailers:   upstreamResp.Trailers,
		Body:       upstreamResp.Body,
	}
}

func (o *Orchestrator) logAccess(req *IncomingRequest, resp *OutgoingResponse, d time.Duration) {
	o.log.Info("request",
		zap.String("method", req.Method),
		zap.String("host", req.Host),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", d),
	)
	o.metrics.RequestsTotal.WithLabelValues(req.Host, statusClass(resp.StatusCode)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// splitHostPort splits a verbatim Host header into the bare hostname
// and a ":port" suffix (empty if the header carries no port).
func splitHostPort(host string) (hostOnly, hport string) {
	idx := strings.LastIndexByte(host, ':')
	if idx < 0 {
		return host, ""
	}
	// Guard against a bare IPv6 literal without brackets; the proxy's own
	// facing host is never that, but be defensive rather than mis-split.
	if strings.Contains(host[idx+1:], ":") {
		return host, ""
	}
	return host[:idx], host[idx:]
}

func stripContentTypeParams(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
