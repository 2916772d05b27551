package services

import (
	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for source acquisition.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheLookups    *prometheus.CounterVec // by source and result (hit/miss)
	sourceRequests  *prometheus.CounterVec // by source and reason
	requestDuration *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec // by capability
	quotaUsed       *prometheus.GaugeVec   // by source and window
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cricklytics",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"source", "result"}),

		sourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cricklytics",
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Upstream source fetches by outcome reason",
		}, []string{"source", "reason"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cricklytics",
			Subsystem: "source",
			Name:      "request_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),

		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cricklytics",
			Subsystem: "router",
			Name:      "synthetic_fallbacks_total",
			Help:      "Requests answered with synthetic data because every source was empty",
		}, []string{"capability"}),

		quotaUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cricklytics",
			Subsystem: "quota",
			Name:      "calls_in_window",
			Help:      "Calls counted in the current quota window",
		}, []string{"source", "window"}),
	}

	for _, c := range []prometheus.Collector{m.cacheLookups, m.sourceRequests, m.requestDuration, m.fallbacks, m.quotaUsed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(source string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(source, result).Inc()
}

// SourceRequest records the outcome of one adapter fetch
func (m *Metrics) SourceRequest(source string, reason cricket.Reason) {
	if m == nil {
		return
	}
	label := string(reason)
	if reason.OK() {
		label = "ok"
	}
	m.sourceRequests.WithLabelValues(source, label).Inc()
}

// ObserveRequest records upstream request latency
func (m *Metrics) ObserveRequest(source string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(source).Observe(seconds)
}

// SyntheticFallback records a request served by the synthetic generator
func (m *Metrics) SyntheticFallback(capability cricket.Capability) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(string(capability)).Inc()
}

// QuotaSnapshot publishes a guard's current window counts
func (m *Metrics) QuotaSnapshot(usage QuotaUsage) {
	if m == nil {
		return
	}
	m.quotaUsed.WithLabelValues(usage.Source, "minute").Set(float64(usage.Minute))
	m.quotaUsed.WithLabelValues(usage.Source, "hour").Set(float64(usage.Hour))
	m.quotaUsed.WithLabelValues(usage.Source, "day").Set(float64(usage.Day))
}
