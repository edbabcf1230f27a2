package httpclient

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// readChunked decodes an HTTP/1.1 chunked body: each chunk is a hex size
// line, the chunk data, and a trailing CRLF; a zero-size chunk
// terminates the stream. It returns the decoded body. The caller is
// responsible for reading the trailer-part (and its terminating blank
// line) that follows.
func readChunked(r *bufio.Reader) ([]byte, error) {
	var out bytes.Buffer
	for {
		sizeLine, err := readCRLFLine(r)
		if err != nil {
			return nil, fmt.Errorf("httpclient: reading chunk size: %w", err)
		}
		sizeStr := sizeLine
		if idx := strings.IndexByte(sizeStr, ';'); idx >= 0 {
			sizeStr = sizeStr[:idx] // chunk extensions are ignored
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid chunk size %q: %w", sizeLine, err)
		}
		if size == 0 {
			break
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, fmt.Errorf("httpclient: reading chunk data: %w", err)
		}
		if _, err := readCRLFLine(r); err != nil { // trailing CRLF after chunk data
			return nil, fmt.Errorf("httpclient: reading chunk terminator: %w", err)
		}
	}
	return out.Bytes(), nil
}

// readCRLFLine reads a single line, trimming its trailing CRLF or LF.
func readCRLFLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
