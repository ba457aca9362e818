package thunder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records lifecycle API calls. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	apiCallsTotal *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
}

// NewMetrics creates the API metrics and registers them with reg when reg
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tnrctl",
				Subsystem: "api",
				Name:      "calls_total",
				Help:      "Total number of Thunder Compute API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tnrctl",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of Thunder Compute API calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.apiCallsTotal, m.apiLatency)
	}
	return m
}

// RecordAPICall records one API call.
func (m *Metrics) RecordAPICall(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.apiCallsTotal.WithLabelValues(operation, result).Inc()
	m.apiLatency.WithLabelValues(operation).Observe(d.Seconds())
}
