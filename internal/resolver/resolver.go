// Package resolver implements name resolution: literal-address
// short-circuiting, an LRU+TTL cache of prior answers, and a
// family-preference query policy against the configured nameservers.
package resolver

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/liweitianux/wikiproxy/internal/addrutil"
)

// ErrNoAddress is returned when a query yields zero addresses across
// every tried family.
var ErrNoAddress = errors.New("resolver: no address found")

// Config controls resolver behavior. Zero values are replaced with
// defaults.
type Config struct {
	Nameservers []string      // "host:port" pairs; required
	Timeout     time.Duration // per-query timeout
	Retrans     int           // retransmit count per query
	PreferIPv6  bool          // try AAAA before A
	CacheSize   int           // LRU entry count
	CacheTTL    time.Duration // lifetime of every cached answer; record TTLs are not consulted
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.Retrans <= 0 {
		c.Retrans = 2
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 600 * time.Second
	}
}

type cacheEntry struct {
	addrs   []string
	expires time.Time
}

// Resolver resolves names to address lists. It is safe for concurrent
// use; the underlying DNS client is created fresh per call so that
// concurrent queries never share in-flight state.
type Resolver struct {
	cfg Config
	log *zap.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, cacheEntry]
}

// New constructs a Resolver. log may be nil, in which case a no-op logger
// is used.
func New(cfg Config, log *zap.Logger) (*Resolver, error) {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: creating cache: %w", err)
	}
	return &Resolver{cfg: cfg, log: log, cache: cache}, nil
}

// Resolve returns the list of addresses for name. IPv4/IPv6 literals
// are returned immediately (IPv6 bracketed). Otherwise
// the name is lowercased, looked up in the LRU, and on miss resolved via
// DNS using the configured family preference.
func (r *Resolver) Resolve(name string) ([]string, error) {
	if addrutil.IsIPv4(name) {
		return []string{name}, nil
	}
	if addrutil.IsIPv6(name, true) {
		return []string{"[" + canonicalIPv6(addrutil.StripBrackets(name)) + "]"}, nil
	}

	key := strings.ToLower(name)

	r.mu.Lock()
	if entry, ok := r.cache.Get(key); ok {
		if time.Now().Before(entry.expires) {
			r.mu.Unlock()
			return entry.addrs, nil
		}
		r.cache.Remove(key)
	}
	r.mu.Unlock()

	addrs, err := r.query(key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache.Add(key, cacheEntry{addrs: addrs, expires: time.Now().Add(r.cfg.CacheTTL)})
	r.mu.Unlock()

	return addrs, nil
}

// ResolveOne resolves name and returns one address chosen at random from
// the answer set, as used by the SOCKS5 dialer and HTTP client connect
// path.
func (r *Resolver) ResolveOne(name string) (string, error) {
	addrs, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	return addrs[rand.Intn(len(addrs))], nil
}

// canonicalIPv6 collapses an unbracketed IPv6 literal to its shortest
// textual form. Literals net.ParseIP cannot handle (zone IDs) pass
// through unchanged.
func canonicalIPv6(s string) string {
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return s
}

var families = [2]uint16{dns.TypeA, dns.TypeAAAA}

// query tries A and AAAA (in configured order) against each configured
// nameserver, stopping at the first family that yields a non-empty
// answer set.
func (r *Resolver) query(name string) ([]string, error) {
	if len(r.cfg.Nameservers) == 0 {
		return nil, fmt.Errorf("resolver: no nameservers configured")
	}

	order := families
	if r.cfg.PreferIPv6 {
		order = [2]uint16{dns.TypeAAAA, dns.TypeA}
	}

	for _, qtype := range order {
		addrs := r.queryFamily(name, qtype)
		if len(addrs) > 0 {
			return addrs, nil
		}
	}
	return nil, ErrNoAddress
}

// queryFamily issues a single-family query against the configured
// nameservers in order, returning the first non-empty answer; a
// nameserver that fails or answers with no records of this family is
// followed by the next one.
// A fresh dns.Client is created for every call: this resolver is
// invoked concurrently by many in-flight requests, and a shared
// *dns.Client + its in-flight exchange table must never be reused
// across them.
func (r *Resolver) queryFamily(name string, qtype uint16) []string {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	client := &dns.Client{
		Timeout: r.cfg.Timeout,
	}

	var lastErr error
	for _, ns := range r.cfg.Nameservers {
		for attempt := 0; attempt <= r.cfg.Retrans; attempt++ {
			resp, _, err := client.Exchange(msg, ns)
			if err != nil {
				lastErr = err
				continue
			}
			addrs := extractAddrs(resp, qtype)
			if len(addrs) > 0 {
				return addrs
			}
			break // nameserver answered but had nothing for this family
		}
	}
	if lastErr != nil {
		r.log.Debug("dns query failed", zap.String("name", name), zap.Uint16("qtype", qtype), zap.Error(lastErr))
	}
	return nil
}

// extractAddrs pulls addresses of the queried type out of a DNS
// response, ignoring any records of a different type.
func extractAddrs(resp *dns.Msg, qtype uint16) []string {
	var out []string
	for _, rr := range resp.Answer {
		switch qtype {
		case dns.TypeA:
			if a, ok := rr.(*dns.A); ok {
				out = append(out, a.A.String())
			}
		case dns.TypeAAAA:
			if aaaa, ok := rr.(*dns.AAAA); ok {
				out = append(out, "["+aaaa.AAAA.String()+"]")
			}
		}
	}
	return out
}
