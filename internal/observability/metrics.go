package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disasterwatch"

// Metrics holds the Prometheus collectors for alert dispatch and delivery.
type Metrics struct {
	Dispatches           *prometheus.CounterVec // labels: outcome={skipped,no_match,dispatched,failed}
	MatchedSubscriptions prometheus.Histogram
	DispatchDuration     prometheus.Histogram
	Notifications        *prometheus.CounterVec // labels: channel, provider, outcome={sent,error,unconfigured}
	QueueDropped         prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Dispatches,
		m.MatchedSubscriptions,
		m.DispatchDuration,
		m.Notifications,
		m.QueueDropped,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_dispatches_total",
			Help:      "Alert dispatch cycles by outcome.",
		}, []string{"outcome"}),
		MatchedSubscriptions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_matched_subscriptions",
			Help:      "Subscriptions matched per dispatched event.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 75, 100},
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_dispatch_duration_seconds",
			Help:      "Duration of a full dispatch cycle including fan-out.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by channel, provider and outcome.",
		}, []string{"channel", "provider", "outcome"}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_queue_dropped_total",
			Help:      "Events not dispatched because the alert queue was full.",
		}),
	}
}
