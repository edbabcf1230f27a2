package httpclient

import (
	"bufio"
	"strings"
	"testing"
)

func TestParseStatusLine(t *testing.T) {
	resp, err := parseStatusLine("HTTP/1.1 404 Not Found")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Proto != "HTTP/1.1" || resp.StatusCode != 404 || resp.Reason != "Not Found" {
		t.Errorf("got %+v", resp)
	}
}

func TestParseResponseWithTrailers(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"Trailer: X-Checksum\r\n" +
		"\r\n" +
		"5\r\nhello\r\n0\r\n" +
		"X-Checksum: deadbeef\r\n\r\n"
	resp, err := parseResponse(bufio.NewReader(strings.NewReader(raw)), "GET", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("got body %q", resp.Body)
	}
	got, ok := resp.Headers.Get("X-Checksum")
	if !ok || got != "deadbeef" {
		t.Errorf("expected trailer visible via header lookup, got %q %v", got, ok)
	}
}

func TestParseResponseSkipsMalformedHeaderLines(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nnot-a-header-line\r\nContent-Length: 2\r\n\r\nhi"
	resp, err := parseResponse(bufio.NewReader(strings.NewReader(raw)), "GET", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "hi" {
		t.Errorf("got %q", resp.Body)
	}
}

func TestBodyExpected(t *testing.T) {
	cases := []struct {
		method string
		status int
		want   bool
	}{
		{"GET", 200, true},
		{"HEAD", 200, false},
		{"GET", 204, false},
		{"GET", 304, false},
		{"GET", 101, false},
		{"GET", 404, true},
	}
	for _, c := range cases {
		if got := bodyExpected(c.method, c.status); got != c.want {
			t.Errorf("bodyExpected(%q, %d) = %v, want %v", c.method, c.status, got, c.want)
		}
	}
}

func TestConnectionCloseClearsKeepAlive(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 0\r\n\r\n"
	resp, err := parseResponse(bufio.NewReader(strings.NewReader(raw)), "GET", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.KeepAlive {
		t.Error("expected KeepAlive=false after Connection: close")
	}
}

func TestReadToEOFBodyDisablesKeepAlive(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nuntil eof"
	resp, err := parseResponse(bufio.NewReader(strings.NewReader(raw)), "GET", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "until eof" {
		t.Errorf("got %q", resp.Body)
	}
	if resp.KeepAlive {
		t.Error("an EOF-delimited body leaves no connection to reuse")
	}
}
