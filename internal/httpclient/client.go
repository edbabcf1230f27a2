// Package httpclient implements a client-side HTTP/1.1 engine: request
// serialization, chunked decoding, case-insensitive headers with
// trailer fallback, and pooled keepalive connections keyed by
// (scheme, host, port, tls, sni).
package httpclient

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liweitianux/wikiproxy/internal/addrutil"
)

// Resolver is the minimal name-resolution contract the client needs.
type Resolver interface {
	Resolve(name string) ([]string, error)
}

// Dialer is the minimal SOCKS5 tunneling contract; satisfied by
// *socks5.Dialer. A nil Dialer on Client means upstream connections are
// dialed directly.
type Dialer interface {
	Connect(targetHost string, targetPort int) (net.Conn, error)
}

// ErrUpstreamIO wraps any dial, write, or read failure talking to the
// upstream.
var ErrUpstreamIO = errors.New("httpclient: upstream I/O error")

// Client is the HTTP/1.1 client engine.
type Client struct {
	Resolver    Resolver
	Dialer      Dialer // optional SOCKS5 tunnel
	TLSConfig   *tls.Config
	Pool        *ConnPool
	DialTimeout time.Duration
	IOTimeout   time.Duration
	Log         *zap.Logger
}

// NewClient constructs a Client with sane defaults for any zero fields.
func NewClient(resolver Resolver, dialer Dialer, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		Resolver:    resolver,
		Dialer:      dialer,
		TLSConfig:   &tls.Config{},
		Pool:        NewConnPool(8, 90*time.Second),
		DialTimeout: 10 * time.Second,
		IOTimeout:   30 * time.Second,
		Log:         log,
	}
}

// Do sends req and returns the parsed response, running the
// connect/serialize/parse pipeline end to end.
func (c *Client) Do(req *Request) (*Response, error) {
	useTLS := req.Scheme == "https"
	sni := sniFromHost(req.Host)

	key := PoolKey{Scheme: req.Scheme, Host: req.Host, Port: req.Port, TLS: useTLS, SNI: sni}

	conn, reused := c.Pool.Get(key)
	if !reused {
		var err error
		conn, err = c.dial(req.Host, req.Port, useTLS, sni)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
		}
	}

	if c.IOTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.IOTimeout))
	}

	headLine, body, err := req.serialize()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("httpclient: serializing request: %w", err)
	}

	if _, err := conn.Write(headLine); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: writing headers: %v", ErrUpstreamIO, err)
	}
	if len(body) > 0 {
		if _, err := conn.Write(body); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: writing body: %v", ErrUpstreamIO, err)
		}
	}

	br := bufio.NewReader(conn)
	resp, err := parseResponse(br, req.Method, c.Log)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamIO, err)
	}

	_ = conn.SetDeadline(time.Time{})
	if resp.KeepAlive {
		c.Pool.Put(key, conn)
	} else {
		conn.Close()
	}

	return resp, nil
}

// dial establishes a fresh connection to host:port, through the SOCKS5
// dialer if configured, and performs a TLS handshake when useTLS is set.
// The target address is resolved and one address is picked at random.
func (c *Client) dial(host string, port int, useTLS bool, sni string) (net.Conn, error) {
	if c.Dialer != nil {
		raw, err := c.Dialer.Connect(host, port)
		if err != nil {
			return nil, err
		}
		if !useTLS {
			return raw, nil
		}
		return c.tlsHandshake(raw, sni)
	}

	addrs, err := c.Resolver.Resolve(host)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", host, err)
	}
	addr := addrs[rand.Intn(len(addrs))]

	raw, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", addrutil.StripBrackets(addr), port), c.DialTimeout)
	if err != nil {
		return nil, err
	}
	if !useTLS {
		return raw, nil
	}
	return c.tlsHandshake(raw, sni)
}

func (c *Client) tlsHandshake(raw net.Conn, sni string) (net.Conn, error) {
	cfg := c.TLSConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.ServerName = sni

	tlsConn := tls.Client(raw, cfg)
	if c.DialTimeout > 0 {
		_ = tlsConn.SetDeadline(time.Now().Add(c.DialTimeout))
	}
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	_ = tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

// sniFromHost derives the TLS SNI value from a Host header value: it is
// lowercased with any port suffix stripped.
func sniFromHost(host string) string {
	h := strings.ToLower(host)
	if idx := strings.LastIndex(h, ":"); idx >= 0 && !strings.Contains(h[idx+1:], "]") {
		// avoid truncating a bracketed IPv6 literal that itself has colons
		if !strings.HasPrefix(h, "[") || strings.HasSuffix(h[:idx], "]") {
			h = h[:idx]
		}
	}
	return addrutil.StripBrackets(h)
}
