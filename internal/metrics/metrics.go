// Package metrics exposes Prometheus collectors for the job engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's collectors. A nil *Metrics is valid everywhere
// it is accepted; callers that don't scrape simply pass nil.
type Metrics struct {
	Processed *prometheus.CounterVec
	InFlight  *prometheus.GaugeVec
	Duration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickernest",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Jobs resolved to a terminal outcome, by queue and outcome.",
		}, []string{"queue", "outcome"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stickernest",
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Handler invocations currently executing, by queue.",
		}, []string{"queue"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stickernest",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time from claim to resolution, by queue.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"queue"}),
	}
	reg.MustRegister(m.Processed, m.InFlight, m.Duration)
	return m
}

// JobStarted marks a handler invocation as in flight.
func (m *Metrics) JobStarted(queue string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(queue).Inc()
}

// JobFinished records a terminal outcome.
func (m *Metrics) JobFinished(queue, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(queue).Dec()
	m.Processed.WithLabelValues(queue, outcome).Inc()
	m.Duration.WithLabelValues(queue).Observe(seconds)
}
