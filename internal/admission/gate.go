// Package admission implements a challenge-based admission gate: a
// shared, TTL-keyed counter table that requires N repeat requests from
// each (client_ip, user_agent) before granting a time-limited
// admission token.
package admission

import (
	"strconv"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	// Admitted is true once the client has passed the challenge (or
	// already held a live admitted flag).
	Admitted bool
	// BadRequest is true when the User-Agent was empty; the caller must
	// reply 400 and stop.
	BadRequest bool
	// StatusCode and Body are set when the gate itself must reply
	// (challenge in progress).
	StatusCode int
	Body       string
}

// Config controls gate behavior; zero fields are replaced with defaults.
type Config struct {
	StatusCode int
	Retries    int
	WaitTime   time.Duration
	TTL        time.Duration
}

func (c *Config) setDefaults() {
	if c.StatusCode == 0 {
		c.StatusCode = 404
	}
	if c.Retries == 0 {
		c.Retries = 6
	}
	if c.WaitTime == 0 {
		c.WaitTime = 10 * time.Second
	}
	if c.TTL == 0 {
		c.TTL = 3600 * time.Second
	}
}

var metricDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wikiproxy",
	Subsystem: "admission",
	Name:      "decisions_total",
	Help:      "Count of admission gate decisions by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(metricDecisions)
}

// Gate is the admission gate. The counter/flag table is backed by
// patrickmn/go-cache, which gives per-key atomic increment and
// independent per-entry TTLs.
type Gate struct {
	cfg   Config
	store *cache.Cache

	mu sync.Mutex // guards the get-increment-set sequence per key
}

// New constructs a Gate. The cache's janitor sweeps expired entries at
// the shorter of WaitTime/TTL.
func New(cfg Config) *Gate {
	cfg.setDefaults()
	cleanup := cfg.WaitTime
	if cfg.TTL < cleanup {
		cleanup = cfg.TTL
	}
	return &Gate{
		cfg:   cfg,
		store: cache.New(cfg.TTL, cleanup),
	}
}

// Check runs the admission decision for one request.
func (g *Gate) Check(clientIP, userAgent string) Decision {
	if userAgent == "" {
		metricDecisions.WithLabelValues("bad_request").Inc()
		return Decision{BadRequest: true, StatusCode: 400, Body: "bad request"}
	}

	authedKey := "authed:" + clientIP + ":" + userAgent
	authingKey := "authing:" + clientIP + ":" + userAgent

	if _, found := g.store.Get(authedKey); found {
		metricDecisions.WithLabelValues("admitted_cached").Inc()
		return Decision{Admitted: true}
	}

	// The increment must be atomic across concurrent requests from the
	// same (ip, ua); go-cache's own mutex doesn't cover a get-then-set
	// read-modify-write, so the gate serializes it itself.
	g.mu.Lock()
	v := g.incrAuthing(authingKey)
	g.mu.Unlock()

	if v <= g.cfg.Retries {
		remaining := g.cfg.Retries + 1 - v
		metricDecisions.WithLabelValues("challenged").Inc()
		return Decision{
			Admitted:   false,
			StatusCode: g.cfg.StatusCode,
			Body:       strconv.Itoa(remaining),
		}
	}

	g.store.Set(authedKey, "1", g.cfg.TTL)
	metricDecisions.WithLabelValues("admitted_new").Inc()
	return Decision{Admitted: true}
}

// incrAuthing increments authingKey, creating it at 0 (then
// incrementing to 1) on first use, and returns the post-increment value.
func (g *Gate) incrAuthing(authingKey string) int {
	_ = g.store.Add(authingKey, 0, g.cfg.WaitTime) // no-op if already present

	newVal, err := g.store.IncrementInt(authingKey, 1)
	if err != nil {
		// lost a race with expiry between Add and IncrementInt; recreate.
		g.store.Set(authingKey, 1, g.cfg.WaitTime)
		return 1
	}
	return newVal
}
