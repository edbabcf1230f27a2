package httpclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Request is the internal request descriptor built by the orchestrator
// after reverse-mapping the client's path.
type Request struct {
	Scheme string // "http" or "https"
	Host   string // upstream host, name or literal address
	Port   int
	Method string
	Path   string
	// Query is either a pre-encoded string or url.Values, which is
	// form-encoded.
	Query   interface{}
	Headers *Headers
	// Body is nil, []byte, or []string (a list body, joined on write).
	Body interface{}
}

var defaultUserAgent = "WikiProxy/1.0"

// serialize renders the request line and header block, and returns the
// byte body to write after it (nil if none). It mutates req.Headers in
// place to fill in computed fields (Content-Length, User-Agent, Host).
func (req *Request) serialize() ([]byte, []byte, error) {
	if req.Headers == nil {
		req.Headers = NewHeaders()
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	path := req.Path
	if path == "" {
		path = "/"
	}

	query, err := req.encodedQuery()
	if err != nil {
		return nil, nil, err
	}

	target := path
	if query != "" {
		target += "?" + query
	}

	body, err := req.encodedBody()
	if err != nil {
		return nil, nil, err
	}

	// Transfer-Encoding: chunked strips Content-Length to guard against
	// request smuggling.
	if te, ok := req.Headers.Get("Transfer-Encoding"); ok && strings.EqualFold(te, "chunked") {
		req.Headers.Del("Content-Length")
	} else if !req.Headers.Has("Content-Length") {
		length := computeContentLength(method, body, req.Body)
		if length >= 0 {
			req.Headers.Set("Content-Length", strconv.Itoa(length))
		}
	}

	req.Headers.SetIfAbsent("User-Agent", defaultUserAgent)
	req.Headers.SetIfAbsent("Host", hostHeaderValue(req.Host, req.Port, req.Scheme))

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, target)
	for _, field := range req.Headers.Iter() {
		if !httpguts.ValidHeaderFieldName(field.Name) {
			continue
		}
		for _, v := range field.Values {
			if !httpguts.ValidHeaderFieldValue(v) {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\r\n", field.Name, v)
		}
	}
	b.WriteString("\r\n")

	return []byte(b.String()), body, nil
}

func hostHeaderValue(host string, port int, scheme string) string {
	if (scheme == "https" && port == 443) || (scheme == "http" && port == 80) || port == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func (req *Request) encodedQuery() (string, error) {
	switch q := req.Query.(type) {
	case nil:
		return "", nil
	case string:
		return q, nil
	case url.Values:
		return q.Encode(), nil
	default:
		return "", fmt.Errorf("httpclient: unsupported query type %T", q)
	}
}

func (req *Request) encodedBody() ([]byte, error) {
	switch b := req.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case []string:
		return []byte(strings.Join(b, "")), nil
	default:
		return nil, fmt.Errorf("httpclient: unsupported body type %T", b)
	}
}

// computeContentLength applies the default Content-Length precedence: 0
// for POST/PUT/PATCH with a nil body, len(body) for byte bodies, and the
// sum of stringified lengths for list bodies. Returns -1 when no
// Content-Length should be set.
func computeContentLength(method string, encoded []byte, raw interface{}) int {
	switch raw.(type) {
	case nil:
		switch method {
		case "POST", "PUT", "PATCH":
			return 0
		default:
			return -1
		}
	default:
		return len(encoded)
	}
}
