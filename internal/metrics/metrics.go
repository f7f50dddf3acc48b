// Package metrics exposes the optional Prometheus collectors described in
// SPEC_FULL.md §5.15. The Runner and Router accept a *Registry; when nil,
// every recording method is a no-op.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors shared by the executor and the router.
type Registry struct {
	prom *prometheus.Registry

	mcpRequestsTotal  *prometheus.CounterVec
	mcpQueueDepth     prometheus.Gauge
	stepDuration      *prometheus.HistogramVec
	stepAttemptsTotal *prometheus.CounterVec
}

// New constructs a Registry backed by a fresh prometheus.Registry and
// registers every collector.
func New() *Registry {
	r := &Registry{prom: prometheus.NewRegistry()}

	r.mcpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowctl_mcp_requests_total",
		Help: "MCP Router completion attempts by terminal status.",
	}, []string{"status"})

	r.mcpQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowctl_mcp_queue_depth",
		Help: "Current number of requests admitted but not yet dispatched to a worker.",
	})

	r.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowctl_step_duration_seconds",
		Help:    "Step attempt duration by step kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	r.stepAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowctl_step_attempts_total",
		Help: "Step attempts by terminal outcome.",
	}, []string{"outcome"})

	r.prom.MustRegister(r.mcpRequestsTotal, r.mcpQueueDepth, r.stepDuration, r.stepAttemptsTotal)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.prom
}

// ObserveMCPRequest records one terminal MCP Router attempt.
func (r *Registry) ObserveMCPRequest(status string) {
	if r == nil {
		return
	}
	r.mcpRequestsTotal.WithLabelValues(status).Inc()
}

// SetMCPQueueDepth reports the router's current queue depth.
func (r *Registry) SetMCPQueueDepth(depth int) {
	if r == nil {
		return
	}
	r.mcpQueueDepth.Set(float64(depth))
}

// ObserveStepDuration records one step attempt's wall-clock duration.
func (r *Registry) ObserveStepDuration(kind string, seconds float64) {
	if r == nil {
		return
	}
	r.stepDuration.WithLabelValues(kind).Observe(seconds)
}

// ObserveStepAttempt records one step attempt's terminal outcome.
func (r *Registry) ObserveStepAttempt(outcome string) {
	if r == nil {
		return
	}
	r.stepAttemptsTotal.WithLabelValues(outcome).Inc()
}
