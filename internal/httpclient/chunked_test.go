package httpclient

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadChunkedScenario(t *testing.T) {
	body, err := readChunked(bufio.NewReader(strings.NewReader("3\r\nabc\r\n5\r\nhello\r\n0\r\n\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "abchello" {
		t.Errorf("got %q, want abchello", body)
	}
}

func TestReadChunkedWithExtension(t *testing.T) {
	body, err := readChunked(bufio.NewReader(strings.NewReader("3;foo=bar\r\nabc\r\n0\r\n\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "abc" {
		t.Errorf("got %q", body)
	}
}

func TestReadChunkedEmpty(t *testing.T) {
	body, err := readChunked(bufio.NewReader(strings.NewReader("0\r\n\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != 0 {
		t.Errorf("got %q, want empty", body)
	}
}
