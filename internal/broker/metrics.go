package broker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAcquired    = "acquired"
	outcomeTimeout     = "timeout"
	outcomeCancelled   = "cancelled"
	outcomeAbandoned   = "abandoned"
	outcomeConfigError = "config_error"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	queueDepth   *prometheus.GaugeVec
	acquisitions *prometheus.CounterVec
	waitSeconds  *prometheus.HistogramVec
	reserved     prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "reservable",
				Name:      "queue_depth",
				Help:      "Requests waiting in a label's queue, excluding the one in service.",
			}, []string{"label"},
		),
		acquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reservable",
				Name:      "acquisitions_total",
				Help:      "Acquisition attempts by label and outcome.",
			}, []string{"label", "outcome"},
		),
		waitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reservable",
				Name:      "acquire_wait_seconds",
				Help:      "Time from enqueue to a node being assigned.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			}, []string{"label"},
		),
		reserved: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "reservable",
				Name:      "reserved_nodes",
				Help:      "Nodes currently held by a job or user.",
			},
		),
	}
}

func (m *Metrics) setQueueDepth(label string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(label).Set(float64(n))
}

func (m *Metrics) observe(label, outcome string, waited time.Duration) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(label, outcome).Inc()
	if outcome == outcomeAcquired {
		m.waitSeconds.WithLabelValues(label).Observe(waited.Seconds())
	}
}

func (m *Metrics) setReserved(n int) {
	if m == nil {
		return
	}
	m.reserved.Set(float64(n))
}
