package observability

import "github.com/prometheus/client_golang/prometheus"

// StreamStats is satisfied by stream.Broadcaster.
type StreamStats interface {
	SubscriberCount() int
	Dropped() uint64
}

// StreamCollectors reads live stream state at scrape time.
func StreamCollectors(s StreamStats) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open live disaster stream connections.",
		}, func() float64 { return float64(s.SubscriberCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_total",
			Help:      "Stream deliveries skipped because a subscriber was not keeping up.",
		}, func() float64 { return float64(s.Dropped()) }),
	}
}

// RegisterStream registers StreamCollectors with the default registry.
func RegisterStream(s StreamStats) {
	prometheus.MustRegister(StreamCollectors(s)...)
}
