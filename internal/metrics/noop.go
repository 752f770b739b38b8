package metrics

// NoopCollector discards every measurement.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (n *NoopCollector) InteractionStored(outcome string)     {}
func (n *NoopCollector) ChainDecomposed()                     {}
func (n *NoopCollector) SyncItem(status string)               {}
func (n *NoopCollector) SyncBatchDuration(seconds float64)    {}
