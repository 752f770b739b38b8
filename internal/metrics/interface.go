// Package metrics provides sync and storage instrumentation. The
// Prometheus-backed collector is used by the web server; the no-op
// collector keeps library callers and tests free of a registry.
package metrics

// Collector is the interface for metrics collection.
type Collector interface {
	// InteractionStored records one upsert outcome: "inserted" or "merged".
	InteractionStored(outcome string)

	// ChainDecomposed records one accepted chain decomposition.
	ChainDecomposed()

	// SyncItem records one processed batch item: "synced" or "failed".
	SyncItem(status string)

	// SyncBatchDuration records how long one batch took, in seconds.
	SyncBatchDuration(seconds float64)
}
