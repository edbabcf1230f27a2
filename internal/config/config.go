// Package config decodes and validates WikiProxy's static YAML
// configuration table, applying defaults to zero-valued fields and
// validating the result before use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DomainMap is one wiki_domain/path_prefix pair under a binding.
type DomainMap struct {
	WikiDomain string `yaml:"wiki_domain"`
	PathPrefix string `yaml:"path_prefix"`
}

// Wiki is one proxy_host -> primary_domain binding, plus its auxiliary
// mapped domains.
type Wiki struct {
	ProxyHost     string      `yaml:"proxy_host"`
	PrimaryDomain string      `yaml:"primary_domain"`
	Maps          []DomainMap `yaml:"maps"`
}

// Auth configures the admission gate (internal/admission).
type Auth struct {
	StatusCode int           `yaml:"code"`
	Retries    int           `yaml:"retries"`
	WaitTime   time.Duration `yaml:"wait_time"`
	TTL        time.Duration `yaml:"ttl"`
}

func (a *Auth) setDefaults() {
	if a.StatusCode == 0 {
		a.StatusCode = 404
	}
	if a.Retries == 0 {
		a.Retries = 6
	}
	if a.WaitTime == 0 {
		a.WaitTime = 10 * time.Second
	}
	if a.TTL == 0 {
		a.TTL = 3600 * time.Second
	}
}

// DNS configures the resolver (internal/resolver).
type DNS struct {
	Nameservers []string      `yaml:"nameservers"`
	Timeout     time.Duration `yaml:"timeout"`
	Retrans     int           `yaml:"retrans"`
	PreferIPv6  bool          `yaml:"prefer_ipv6"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

func (d *DNS) setDefaults() {
	if d.Timeout == 0 {
		d.Timeout = 2 * time.Second
	}
	if d.Retrans == 0 {
		d.Retrans = 2
	}
	if d.CacheSize == 0 {
		d.CacheSize = 256
	}
	if d.CacheTTL == 0 {
		d.CacheTTL = 600 * time.Second
	}
}

// Proxy configures the outbound SOCKS5 egress (internal/socks5), if any.
type Proxy struct {
	URL         string        `yaml:"url"` // e.g. socks5://host:port or socks5h://host:port
	DialTimeout time.Duration `yaml:"dial_timeout"`
	IOTimeout   time.Duration `yaml:"io_timeout"`
}

func (p *Proxy) setDefaults() {
	if p.DialTimeout == 0 {
		p.DialTimeout = 10 * time.Second
	}
	if p.IOTimeout == 0 {
		p.IOTimeout = 30 * time.Second
	}
}

// Config is the root of the static configuration table.
type Config struct {
	Wikis []Wiki `yaml:"wikis"`
	Auth  Auth   `yaml:"auth"`
	DNS   DNS    `yaml:"dns"`
	Proxy Proxy  `yaml:"proxy"`
}

// Load reads and decodes a YAML config file, fills in defaults, and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	c.Auth.setDefaults()
	c.DNS.setDefaults()
	c.Proxy.setDefaults()
}

// Validate rejects a configuration the proxy cannot safely run: duplicate
// proxy hosts, malformed path prefixes, and the same path prefix used by
// two map entries of one wiki. Distinct but overlapping prefixes are
// accepted; reverse mapping tries them in configuration order.
func (c *Config) Validate() error {
	seenHosts := make(map[string]struct{}, len(c.Wikis))
	for _, w := range c.Wikis {
		if w.ProxyHost == "" {
			return fmt.Errorf("wiki entry missing proxy_host")
		}
		if _, dup := seenHosts[w.ProxyHost]; dup {
			return fmt.Errorf("duplicate proxy_host %q", w.ProxyHost)
		}
		seenHosts[w.ProxyHost] = struct{}{}

		if w.PrimaryDomain == "" {
			return fmt.Errorf("wiki %q missing primary_domain", w.ProxyHost)
		}

		seenPrefixes := make(map[string]string, len(w.Maps))
		for _, m := range w.Maps {
			if m.WikiDomain == "" {
				return fmt.Errorf("wiki %q has a map entry with empty wiki_domain", w.ProxyHost)
			}
			if m.PathPrefix != "" {
				if m.PathPrefix[0] != '/' || m.PathPrefix[len(m.PathPrefix)-1] != '/' {
					return fmt.Errorf("wiki %q: path_prefix %q must begin and end with \"/\"", w.ProxyHost, m.PathPrefix)
				}
			}
			if owner, dup := seenPrefixes[m.PathPrefix]; dup {
				return fmt.Errorf("wiki %q: path_prefix %q used by both %q and %q", w.ProxyHost, m.PathPrefix, owner, m.WikiDomain)
			}
			seenPrefixes[m.PathPrefix] = m.WikiDomain
		}
	}
	return nil
}
