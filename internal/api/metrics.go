package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"salesdash/internal/session"
)

const metricsNamespace = "salesdash"

type Metrics struct {
	clicks       *prometheus.CounterVec
	resets       prometheus.Counter
	computations *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics registers the dashboard collectors on reg.
func NewMetrics(reg prometheus.Registerer, sessions *session.Store) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		clicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "click_transitions_total",
			Help:      "Chart clicks by dimension and resulting transition.",
		}, []string{"dimension", "outcome"}),
		resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "click_resets_total",
			Help:      "Clear Chart Filters actions.",
		}),
		computations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dashboard_computations_total",
			Help:      "Dashboard recomputations by trigger.",
		}, []string{"trigger"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dashboard_computation_seconds",
			Help:      "Time spent filtering and aggregating one dashboard.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory.",
	}, func() float64 { return float64(sessions.Len()) })
	return m
}

func (m *Metrics) click(dimension string, tr session.Transition) {
	outcome := tr.String()
	if tr == session.None {
		outcome = "ignored"
	}
	m.clicks.WithLabelValues(dimension, outcome).Inc()
}

func (m *Metrics) computed(trigger string, start time.Time) {
	m.computations.WithLabelValues(trigger).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}
