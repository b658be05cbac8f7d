// Package metrics exposes save queue activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "slicesync"
	subsystem = "save"
)

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

// SaveMetrics implements savequeue.Observer.
type SaveMetrics struct {
	writes     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	superseded *prometheus.CounterVec
	inFlight   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*SaveMetrics, error) {
	m := &SaveMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "writes_total",
			Help:      "Number of document writes attempted, by slice and result",
		}, []string{
			"slice",
			"result",
		}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_duration_seconds",
			Help:      "Time taken by a read-modify-write of a slice document",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{
			"slice",
		}),

		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "superseded_total",
			Help:      "Number of parked states replaced by a newer state before being written",
		}, []string{
			"slice",
		}),

		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight",
			Help:      "Whether a write is in flight for the slice",
		}, []string{
			"slice",
		}),
	}

	for _, c := range []prometheus.Collector{m.writes, m.duration, m.superseded, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SaveMetrics) WriteStarted(slice string) {
	m.inFlight.WithLabelValues(slice).Inc()
}

func (m *SaveMetrics) WriteFinished(slice string, elapsed time.Duration, err error) {
	m.inFlight.WithLabelValues(slice).Dec()
	m.duration.WithLabelValues(slice).Observe(elapsed.Seconds())
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.writes.WithLabelValues(slice, result).Inc()
}

func (m *SaveMetrics) Superseded(slice string) {
	m.superseded.WithLabelValues(slice).Inc()
}
