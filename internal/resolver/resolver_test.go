package resolver

import (
	"testing"
	"time"
)

func TestResolveLiteralIPv4(t *testing.T) {
	r, err := New(Config{Nameservers: []string{"127.0.0.1:1"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	addrs, err := r.Resolve("203.0.113.5")
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 || addrs[0] != "203.0.113.5" {
		t.Errorf("got %v", addrs)
	}
}

func TestResolveLiteralIPv6Bracketed(t *testing.T) {
	r, err := New(Config{Nameservers: []string{"127.0.0.1:1"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	addrs, err := r.Resolve("2001:db8::1")
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 || addrs[0] != "[2001:db8::1]" {
		t.Errorf("got %v", addrs)
	}

	addrs, err = r.Resolve("[2001:db8::2]")
	if err != nil {
		t.Fatal(err)
	}
	if addrs[0] != "[2001:db8::2]" {
		t.Errorf("got %v", addrs)
	}
}

func TestResolveNoNameserversFails(t *testing.T) {
	r, err := New(Config{Nameservers: nil, Timeout: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("en.wikipedia.org"); err == nil {
		t.Error("expected error with no nameservers configured")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.setDefaults()
	if cfg.Timeout != 2*time.Second {
		t.Errorf("default timeout = %v", cfg.Timeout)
	}
	if cfg.Retrans != 2 {
		t.Errorf("default retrans = %v", cfg.Retrans)
	}
	if cfg.CacheSize != 256 {
		t.Errorf("default cache size = %v", cfg.CacheSize)
	}
	if cfg.CacheTTL != 600*time.Second {
		t.Errorf("default cache ttl = %v", cfg.CacheTTL)
	}
}
