package proxy

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/liweitianux/wikiproxy/internal/admission"
	"github.com/liweitianux/wikiproxy/internal/httpclient"
	"github.com/liweitianux/wikiproxy/internal/urlmap"
)

// loopbackDialer ignores the requested host and always connects to a
// fixed loopback address, standing in for DNS + egress in tests.
type loopbackDialer struct {
	addr string
}

func (d *loopbackDialer) Connect(_ string, _ int) (net.Conn, error) {
	return net.DialTimeout("tcp", d.addr, 2*time.Second)
}

// startFakeUpstream accepts exactly one connection and writes a fixed
// plain-HTTP response, mirroring the upstream the orchestrator talks to
// through the HTTP client.
func startFakeUpstream(t *testing.T, response string) (addr string, done chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n') // discard the request line
		_, _ = conn.Write([]byte(response))
	}()
	return ln.Addr().String(), done
}

func newTestOrchestrator(t *testing.T, binding *urlmap.Binding) *Orchestrator {
	t.Helper()
	// A negative retry count admits every client on its first request
	// (zero would be replaced by the default of 6 challenges).
	gate := admission.New(admission.Config{StatusCode: 404, Retries: -1, WaitTime: time.Minute, TTL: time.Minute})
	client := httpclient.NewClient(nil, &DirectDialer{Timeout: 2 * time.Second}, zap.NewNop())
	return New([]*urlmap.Binding{binding}, gate, client, zap.NewNop())
}

func TestHandleUnknownHost(t *testing.T) {
	binding, err := urlmap.NewBinding("wiki.example.com", "en.wikipedia.org", nil)
	if err != nil {
		t.Fatal(err)
	}
	o := newTestOrchestrator(t, binding)

	req := &IncomingRequest{
		ClientIP:  "1.2.3.4",
		UserAgent: "UA",
		Host:      "unknown.example",
		Scheme:    "http",
		Method:    "GET",
		Path:      "/",
		Headers:   httpclient.NewHeaders(),
	}
	resp := o.Handle(req)
	if resp.StatusCode != 404 {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
}

func TestHandleEmptyUserAgentIsBadRequest(t *testing.T) {
	binding, err := urlmap.NewBinding("wiki.example.com", "en.wikipedia.org", nil)
	if err != nil {
		t.Fatal(err)
	}
	o := newTestOrchestrator(t, binding)

	req := &IncomingRequest{
		ClientIP: "1.2.3.4",
		Host:     "wiki.example.com",
		Scheme:   "http",
		Method:   "GET",
		Path:     "/wiki/Foo",
		Headers:  httpclient.NewHeaders(),
	}
	resp := o.Handle(req)
	if resp.StatusCode != 400 {
		t.Errorf("got status %d, want 400", resp.StatusCode)
	}
}

func TestHandleAdmissionChallengeThenProxies(t *testing.T) {
	binding, err := urlmap.NewBinding("wiki.example.com", "en.wikipedia.org", []urlmap.DomainMap{
		{WikiDomain: "en.m.wikipedia.org", PathPrefix: "/.wp-m/"},
	})
	if err != nil {
		t.Fatal(err)
	}

	const upstreamBody = `<a href="https://en.m.wikipedia.org/x">`
	response := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: " +
		strconv.Itoa(len(upstreamBody)) + "\r\nConnection: close\r\n\r\n" + upstreamBody
	addr, done := startFakeUpstream(t, response)
	defer func() { <-done }()

	gate := admission.New(admission.Config{StatusCode: 404, Retries: 1, WaitTime: time.Minute, TTL: time.Minute})
	client := httpclient.NewClient(nil, &loopbackDialer{addr: addr}, zap.NewNop())
	o := New([]*urlmap.Binding{binding}, gate, client, zap.NewNop())

	req := &IncomingRequest{
		ClientIP:  "1.2.3.4",
		UserAgent: "UA",
		Host:      "wiki.example.com",
		Scheme:    "http",
		Method:    "GET",
		Path:      "/wiki/Foo",
		Headers:   httpclient.NewHeaders(),
	}

	// first request: challenged, not yet admitted.
	resp := o.Handle(req)
	if resp.StatusCode != 404 {
		t.Fatalf("first request: got status %d, want challenge 404", resp.StatusCode)
	}

	// second request: admitted, proxied to the fake upstream; the
	// mapped domain in the body is rewritten back into the proxy host.
	resp = o.Handle(req)
	if resp.StatusCode != 200 {
		t.Fatalf("second request: got status %d, want 200", resp.StatusCode)
	}
	want := `<a href="https://wiki.example.com/.wp-m/x">`
	if string(resp.Body) != want {
		t.Errorf("got body %q, want %q", resp.Body, want)
	}
	if got, _ := resp.Headers.Get("Content-Length"); got != strconv.Itoa(len(want)) {
		t.Errorf("got Content-Length %q, want %d", got, len(want))
	}
}

func TestReadBodyPrefersSpilledFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body")
	if err := os.WriteFile(path, []byte("spilled"), 0o600); err != nil {
		t.Fatal(err)
	}

	req := &IncomingRequest{Body: []byte("in-memory"), BodyFile: path}
	body, err := req.ReadBody()
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "spilled" {
		t.Errorf("got %q, want the spilled file contents", body)
	}

	req = &IncomingRequest{Body: []byte("in-memory")}
	body, err = req.ReadBody()
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "in-memory" {
		t.Errorf("got %q", body)
	}
}
