package proxy

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/liweitianux/wikiproxy/internal/addrutil"
)

// Resolver is the minimal name-resolution contract DirectDialer needs;
// it is satisfied by *resolver.Resolver.
type Resolver interface {
	ResolveOne(name string) (string, error)
}

// DirectDialer implements httpclient.Dialer for the no-proxy case: it
// resolves the target through Resolver (the same LRU+TTL cache and
// family-preference policy the SOCKS5 path uses) and dials a plain TCP
// connection to one of the returned addresses, chosen at random. It
// exposes the same Connect signature socks5.Dialer does so the
// orchestrator can swap one for the other based on whether proxy.url
// is configured.
type DirectDialer struct {
	Resolver Resolver
	Timeout  time.Duration
}

// Connect resolves targetHost and dials the resolved address directly.
func (d *DirectDialer) Connect(targetHost string, targetPort int) (net.Conn, error) {
	resolved, err := d.Resolver.ResolveOne(targetHost)
	if err != nil {
		return nil, fmt.Errorf("proxy: resolving %q: %w", targetHost, err)
	}
	addr := net.JoinHostPort(addrutil.StripBrackets(resolved), strconv.Itoa(targetPort))
	conn, err := net.DialTimeout("tcp", addr, d.Timeout)
	if err != nil {
		return nil, fmt.Errorf("proxy: dialing %s: %w", addr, err)
	}
	return conn, nil
}
