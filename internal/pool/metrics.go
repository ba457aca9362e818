package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Eviction reasons.
const (
	reasonHealthCheck = "health_check"
	reasonInvalidated = "invalidated"
	reasonReleased    = "released"
)

// Metrics instruments the pool. A nil *Metrics records nothing.
type Metrics struct {
	connectionsEstablished prometheus.Counter
	healthChecks           *prometheus.CounterVec
	evictions              *prometheus.CounterVec
	acquireDuration        prometheus.Histogram
	openConnections        prometheus.Gauge
}

// NewMetrics creates the pool metrics and registers them with reg when reg
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tnrctl",
			Subsystem: "pool",
			Name:      "connections_established_total",
			Help:      "Total number of SSH connections dialed",
		}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tnrctl",
			Subsystem: "pool",
			Name:      "health_checks_total",
			Help:      "Total number of connection health checks by result",
		}, []string{"result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tnrctl",
			Subsystem: "pool",
			Name:      "evictions_total",
			Help:      "Total number of cached connections removed by reason",
		}, []string{"reason"}),
		acquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tnrctl",
			Subsystem: "pool",
			Name:      "acquire_duration_seconds",
			Help:      "Time spent in Acquire, including dials",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		}),
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tnrctl",
			Subsystem: "pool",
			Name:      "open_connections",
			Help:      "Number of cached SSH connections",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connectionsEstablished, m.healthChecks, m.evictions, m.acquireDuration, m.openConnections)
	}
	return m
}

func (m *Metrics) recordEstablished() {
	if m == nil {
		return
	}
	m.connectionsEstablished.Inc()
}

func (m *Metrics) recordHealthCheck(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.healthChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) recordEviction(reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordAcquire(d time.Duration) {
	if m == nil {
		return
	}
	m.acquireDuration.Observe(d.Seconds())
}

func (m *Metrics) setOpen(n int) {
	if m == nil {
		return
	}
	m.openConnections.Set(float64(n))
}
