// Package socks5 implements an RFC 1928 SOCKS5 client: greeting,
// no-auth method negotiation, and CONNECT to an IPv4/IPv6/domain target.
// It wraps the raw net.Conn so that the caller can perform a TLS
// handshake (or plain read/write) over the tunnel exactly as it would
// over a direct connection.
package socks5

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/liweitianux/wikiproxy/internal/addrutil"
)

// Typed failure kinds returned by Connect.
var (
	ErrProxyUnreachable = errors.New("socks5: proxy unreachable")
	ErrProtocolError    = errors.New("socks5: protocol error")
	ErrUnsupportedAuth  = errors.New("socks5: unsupported auth method")
	ErrConnectRefused   = errors.New("socks5: connect refused")
)

const (
	version5    = 0x05
	methodNone  = 0x00
	methodGSSAP = 0x01 // sent as greeting filler per RFC 1928, never selected
	cmdConnect  = 0x01

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04
)

// Resolver is the minimal name-resolution contract the dialer needs; it
// is satisfied by *resolver.Resolver.
type Resolver interface {
	ResolveOne(name string) (string, error)
}

// Dialer constructs tunneled connections through a single SOCKS5 or
// SOCKS5h proxy.
type Dialer struct {
	proxyHost      string
	proxyPort      string
	proxyResolved  string // resolved address, chosen once at construction
	remoteResolve  bool   // true for socks5h
	dialTimeout    time.Duration
	handshakeDeadl time.Duration
	resolver       Resolver
}

// New constructs a Dialer from a proxy URL of the form
// "socks5[h]://host:port". The proxy host is resolved once, immediately,
// via resolver (a random address is chosen from the answer set).
func New(rawURL string, resolver Resolver, dialTimeout time.Duration) (*Dialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("socks5: invalid proxy url %q: %w", rawURL, err)
	}
	var remoteResolve bool
	switch u.Scheme {
	case "socks5":
		remoteResolve = false
	case "socks5h":
		remoteResolve = true
	default:
		return nil, fmt.Errorf("socks5: unsupported proxy scheme %q", u.Scheme)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "1080"
	}
	if host == "" {
		return nil, fmt.Errorf("socks5: proxy url %q has no host", rawURL)
	}

	resolved, err := resolver.ResolveOne(host)
	if err != nil {
		return nil, fmt.Errorf("socks5: resolving proxy host %q: %w", host, err)
	}

	return &Dialer{
		proxyHost:      host,
		proxyPort:      port,
		proxyResolved:  resolved,
		remoteResolve:  remoteResolve,
		dialTimeout:    dialTimeout,
		handshakeDeadl: dialTimeout,
		resolver:       resolver,
	}, nil
}

// IsRemoteResolve reports whether this dialer's scheme is socks5h (the
// proxy performs target name resolution).
func (d *Dialer) IsRemoteResolve() bool {
	return d.remoteResolve
}

// Connect performs the full RFC 1928 handshake against targetHost:targetPort
// and returns the tunneled connection. The returned net.Conn is ready for
// a TLS handshake (or plaintext read/write) to the target.
func (d *Dialer) Connect(targetHost string, targetPort int) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addrutil.StripBrackets(d.proxyResolved)+":"+d.proxyPort, d.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing proxy %s:%s: %v", ErrProxyUnreachable, d.proxyResolved, d.proxyPort, err)
	}
	if d.handshakeDeadl > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.handshakeDeadl))
	}

	if err := d.greet(conn); err != nil {
		conn.Close()
		return nil, err
	}

	if err := d.connectRequest(conn, targetHost, targetPort); err != nil {
		conn.Close()
		return nil, err
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

// ConnectTLS performs Connect and then a TLS client handshake over the
// tunnel using sni as the ServerName.
func (d *Dialer) ConnectTLS(targetHost string, targetPort int, sni string, tlsConfig *tls.Config) (*tls.Conn, error) {
	raw, err := d.Connect(targetHost, targetPort)
	if err != nil {
		return nil, err
	}
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.ServerName = sni

	tlsConn := tls.Client(raw, cfg)
	if d.handshakeDeadl > 0 {
		_ = tlsConn.SetDeadline(time.Now().Add(d.handshakeDeadl))
	}
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("%w: tls handshake: %v", ErrProtocolError, err)
	}
	_ = tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

// greet sends the version/method-negotiation greeting and requires
// no-auth to be selected.
func (d *Dialer) greet(conn net.Conn) error {
	if _, err := conn.Write([]byte{version5, 0x02, methodNone, methodGSSAP}); err != nil {
		return fmt.Errorf("%w: writing greeting: %v", ErrProxyUnreachable, err)
	}
	var resp [2]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("%w: reading method selection: %v", ErrProtocolError, err)
	}
	if resp[0] != version5 {
		return fmt.Errorf("%w: unexpected version 0x%02x", ErrProtocolError, resp[0])
	}
	if resp[1] != methodNone {
		return fmt.Errorf("%w: proxy selected method 0x%02x", ErrUnsupportedAuth, resp[1])
	}
	return nil
}

// connectRequest sends the CONNECT request and parses the reply.
func (d *Dialer) connectRequest(conn net.Conn, targetHost string, targetPort int) error {
	portBytes, err := addrutil.BE16(targetPort)
	if err != nil {
		return fmt.Errorf("%w: invalid target port %d", ErrProtocolError, targetPort)
	}

	req := []byte{version5, cmdConnect, 0x00}
	req, err = appendTarget(req, d, targetHost)
	if err != nil {
		return err
	}
	req = append(req, portBytes[:]...)

	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("%w: writing connect request: %v", ErrProxyUnreachable, err)
	}

	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return fmt.Errorf("%w: reading connect reply: %v", ErrProtocolError, err)
	}
	if hdr[0] != version5 {
		return fmt.Errorf("%w: unexpected reply version 0x%02x", ErrProtocolError, hdr[0])
	}
	if rep := hdr[1]; rep != 0x00 {
		return fmt.Errorf("%w: %s", replyError(rep), replyMessage(rep))
	}
	if err := discardBoundAddr(conn, hdr[3]); err != nil {
		return fmt.Errorf("%w: reading bound address: %v", ErrProtocolError, err)
	}
	return nil
}

// appendTarget encodes the CONNECT target as ATYPE+ADDR. When the dialer
// is not socks5h, or the target is already a literal address, resolution
// happens locally first (random pick) and the result is encoded as
// IPv4/IPv6 bytes. Domain targets on a socks5h dialer are encoded as
// ATYPE=0x03 with the length-prefixed name.
func appendTarget(req []byte, d *Dialer, targetHost string) ([]byte, error) {
	if !d.remoteResolve {
		resolved, err := d.resolver.ResolveOne(targetHost)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving target %q: %v", ErrProtocolError, targetHost, err)
		}
		return appendResolvedAddr(req, resolved)
	}

	if addrutil.IsIPv4(targetHost) {
		return appendResolvedAddr(req, targetHost)
	}
	if addrutil.IsIPv6(targetHost, true) {
		return appendResolvedAddr(req, targetHost)
	}

	if len(targetHost) == 0 || len(targetHost) > 255 {
		return nil, fmt.Errorf("%w: domain length %d out of range", ErrProtocolError, len(targetHost))
	}
	req = append(req, atypDomain, byte(len(targetHost)))
	req = append(req, targetHost...)
	return req, nil
}

func appendResolvedAddr(req []byte, addr string) ([]byte, error) {
	if addrutil.IsIPv6(addr, true) {
		packed, err := addrutil.PackIPv6(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolError, err)
		}
		return append(append(req, atypIPv6), packed...), nil
	}
	packed, err := addrutil.PackIPv4(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	return append(append(req, atypIPv4), packed...), nil
}

// discardBoundAddr consumes BND.ADDR and BND.PORT from a CONNECT reply
// based on ATYPE: IPv4 is 6 bytes, IPv6 is 18 bytes, domain is
// 1+len+2 bytes.
func discardBoundAddr(r io.Reader, atyp byte) error {
	switch atyp {
	case atypIPv4:
		_, err := io.CopyN(io.Discard, r, 4+2)
		return err
	case atypIPv6:
		_, err := io.CopyN(io.Discard, r, 16+2)
		return err
	case atypDomain:
		var l [1]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return err
		}
		_, err := io.CopyN(io.Discard, r, int64(l[0])+2)
		return err
	default:
		return fmt.Errorf("unknown reply ATYPE 0x%02x", atyp)
	}
}

func replyError(rep byte) error {
	if rep == 0x05 {
		return ErrConnectRefused
	}
	return ErrProtocolError
}

func replyMessage(rep byte) string {
	switch rep {
	case 0x01:
		return "general SOCKS server failure"
	case 0x02:
		return "connection not allowed by ruleset"
	case 0x03:
		return "network unreachable"
	case 0x04:
		return "host unreachable"
	case 0x05:
		return "connection refused"
	case 0x06:
		return "TTL expired"
	case 0x07:
		return "command not supported"
	case 0x08:
		return "address type not supported"
	default:
		return "unknown reply code 0x" + strconv.FormatInt(int64(rep), 16)
	}
}
