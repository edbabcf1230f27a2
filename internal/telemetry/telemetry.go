// Package telemetry wires the ambient logging and metrics stack shared
// across WikiProxy's subsystems: a single *zap.Logger threaded through
// the components rather than letting each one build its own, and a
// fixed set of cross-cutting Prometheus collectors.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewLogger builds the process-wide structured logger. Production builds
// use zap's default JSON production config; set debug to get a
// human-readable console encoder during development.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	return cfg.Build()
}

// Metrics collects the request-level counters the orchestrator updates.
// A subsystem registers its own CounterVec locally (see
// internal/admission) when the metric is specific to that subsystem;
// Metrics holds only the cross-cutting ones.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	UpstreamDialError *prometheus.CounterVec
	RewriteCount      prometheus.Counter
}

var (
	once     sync.Once
	instance *Metrics
)

// Default returns the process-wide Metrics instance, registering its
// collectors on the first call.
func Default() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wikiproxy",
				Name:      "requests_total",
				Help:      "Count of proxied requests by proxy_host and response status class.",
			}, []string{"proxy_host", "status_class"}),
			UpstreamDialError: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wikiproxy",
				Name:      "upstream_dial_errors_total",
				Help:      "Count of upstream dial/send/read failures by upstream domain.",
			}, []string{"upstream_domain"}),
			RewriteCount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "wikiproxy",
				Name:      "body_rewrites_total",
				Help:      "Count of response bodies that underwent forward URL rewriting.",
			}),
		}
		prometheus.MustRegister(instance.RequestsTotal, instance.UpstreamDialError, instance.RewriteCount)
	})
	return instance
}
