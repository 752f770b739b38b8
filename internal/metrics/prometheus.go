package metrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector implements Collector on a private Prometheus registry.
type PrometheusCollector struct {
	interactionsStored *prometheus.CounterVec
	chainsDecomposed   prometheus.Counter
	syncItems          *prometheus.CounterVec
	syncBatchDuration  prometheus.Histogram
	registry           *prometheus.Registry
}

// NewPrometheusCollector creates a Prometheus-backed collector.
func NewPrometheusCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	interactionsStored := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propaths_interactions_stored_total",
			Help: "Interaction upserts by outcome (inserted, merged)",
		},
		[]string{"outcome"},
	)
	chainsDecomposed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "propaths_chains_decomposed_total",
			Help: "Indirect discoveries decomposed into stored edges",
		},
	)
	syncItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propaths_sync_items_total",
			Help: "Processed sync batch items by status (synced, failed)",
		},
		[]string{"status"},
	)
	syncBatchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "propaths_sync_batch_duration_seconds",
			Help:    "Duration of sync batches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)

	registry.MustRegister(interactionsStored)
	registry.MustRegister(chainsDecomposed)
	registry.MustRegister(syncItems)
	registry.MustRegister(syncBatchDuration)

	return &PrometheusCollector{
		interactionsStored: interactionsStored,
		chainsDecomposed:   chainsDecomposed,
		syncItems:          syncItems,
		syncBatchDuration:  syncBatchDuration,
		registry:           registry,
	}
}

// InteractionStored records one upsert outcome.
func (m *PrometheusCollector) InteractionStored(outcome string) {
	m.interactionsStored.WithLabelValues(outcome).Inc()
}

// ChainDecomposed records one accepted chain decomposition.
func (m *PrometheusCollector) ChainDecomposed() {
	m.chainsDecomposed.Inc()
}

// SyncItem records one processed batch item.
func (m *PrometheusCollector) SyncItem(status string) {
	m.syncItems.WithLabelValues(status).Inc()
}

// SyncBatchDuration records how long one batch took.
func (m *PrometheusCollector) SyncBatchDuration(seconds float64) {
	m.syncBatchDuration.Observe(seconds)
}

// Registry returns the Prometheus registry for HTTP exposure.
func (m *PrometheusCollector) Registry() *prometheus.Registry {
	return m.registry
}
