package httpclient

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Response is the descriptor produced by parsing an upstream HTTP/1.1
// response.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Headers    *Headers
	Trailers   *Headers
	Body       []byte
	// KeepAlive reports whether the connection may be returned to the
	// pool (false once "Connection: close" is observed).
	KeepAlive bool
}

// parseResponse reads a full HTTP/1.1 response from r for a request that
// used method. Body-read policy: no body for HEAD or 1xx/204/304
// statuses; chunked takes precedence over Content-Length, which takes
// precedence over read-to-EOF.
func parseResponse(r *bufio.Reader, method string, log *zap.Logger) (*Response, error) {
	if log == nil {
		log = zap.NewNop()
	}
	statusLine, err := readCRLFLine(r)
	if err != nil {
		return nil, fmt.Errorf("httpclient: reading status line: %w", err)
	}
	resp, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, err
	}
	resp.KeepAlive = true

	headers, err := readHeaderBlock(r, log)
	if err != nil {
		return nil, fmt.Errorf("httpclient: reading headers: %w", err)
	}
	resp.Headers = headers

	if conn, ok := headers.Get("Connection"); ok && strings.EqualFold(conn, "close") {
		resp.KeepAlive = false
	}

	if !bodyExpected(method, resp.StatusCode) {
		return resp, nil
	}

	body, trailers, err := readBody(r, headers, log)
	if err != nil {
		return nil, err
	}
	resp.Body = body
	// a body delimited only by EOF leaves nothing to reuse
	if te, chunked := headers.Get("Transfer-Encoding"); !(chunked && strings.EqualFold(te, "chunked")) && !headers.Has("Content-Length") {
		resp.KeepAlive = false
	}
	if trailers != nil {
		resp.Trailers = trailers
		resp.Headers.MergeTrailerFallback(trailers)
	}

	return resp, nil
}

// parseStatusLine extracts protocol, code, and reason by fixed 1-based
// character offsets: the protocol token at 1..8 (its version digits at
// 6..8), code at 10..12, reason from 14 onward (e.g. "HTTP/1.1 200 OK").
func parseStatusLine(line string) (*Response, error) {
	if len(line) < 12 {
		return nil, fmt.Errorf("httpclient: malformed status line %q", line)
	}
	proto := line[0:8]
	codeStr := line[9:12]
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, fmt.Errorf("httpclient: malformed status code in %q: %w", line, err)
	}
	reason := ""
	if len(line) > 13 {
		reason = line[13:]
	}
	return &Response{Proto: proto, StatusCode: code, Reason: reason}, nil
}

// readHeaderBlock reads header lines until a blank line. Lines that
// don't match "name: value" are logged and skipped.
func readHeaderBlock(r *bufio.Reader, log *zap.Logger) (*Headers, error) {
	headers := NewHeaders()
	for {
		line, err := readCRLFLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			log.Debug("skipping malformed header line", zap.String("line", line))
			continue
		}
		headers.Add(name, value)
	}
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

// bodyExpected reports whether a body should be read for the given
// request method and response status.
func bodyExpected(method string, status int) bool {
	if strings.EqualFold(method, "HEAD") {
		return false
	}
	if status/100 == 1 || status == 204 || status == 304 {
		return false
	}
	return true
}

// readBody reads the response body using chunked, Content-Length, or
// read-to-EOF precedence. For a chunked body it always reads the
// trailer-part that follows the zero-size chunk, whether or not a
// Trailer header was advertised; other body modes have no trailers.
func readBody(r *bufio.Reader, headers *Headers, log *zap.Logger) ([]byte, *Headers, error) {
	if te, ok := headers.Get("Transfer-Encoding"); ok && strings.EqualFold(te, "chunked") {
		body, err := readChunked(r)
		if err != nil {
			return nil, nil, err
		}
		// The chunked-body grammar always ends with a trailer-part
		// followed by CRLF, whether or not any trailer fields are
		// present; read that block unconditionally so the blank line
		// (or trailers plus blank line) is drained from the connection
		// before it goes back to the pool.
		trailerBlock, err := readHeaderBlock(r, log)
		if err != nil {
			return nil, nil, fmt.Errorf("httpclient: reading trailers: %w", err)
		}
		var trailers *Headers
		if len(trailerBlock.order) > 0 {
			trailers = trailerBlock
		}
		return body, trailers, nil
	}

	if clStr, ok := headers.Get("Content-Length"); ok {
		length, err := strconv.Atoi(strings.TrimSpace(clStr))
		if err != nil {
			return nil, nil, fmt.Errorf("httpclient: invalid Content-Length %q: %w", clStr, err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, fmt.Errorf("httpclient: reading body: %w", err)
		}
		return buf, nil, nil
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("httpclient: reading body to EOF: %w", err)
	}
	return body, nil, nil
}
