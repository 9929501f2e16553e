package metrics

import "github.com/arloliu/taskchain/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. It is the default collector of the reader,
// the propagator and the manager.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	r := reader.New(querier, reader.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ReaderMetrics implementation

// RecordPageQuery discards the page query metric.
func (n *NopMetrics) RecordPageQuery(_ /* duration */ float64, _ /* tasks */ int, _ /* success */ bool) {
	// No-op
}

// RecordPageSizeGrowth discards the page size growth metric.
func (n *NopMetrics) RecordPageSizeGrowth(_ /* pageSize */ int) {
	// No-op
}

// RecordTasksRead discards the tasks read metric.
func (n *NopMetrics) RecordTasksRead(_ /* count */ int) {
	// No-op
}

// RecordUnconfirmedFlush discards the unconfirmed flush metric.
func (n *NopMetrics) RecordUnconfirmedFlush() {
	// No-op
}

// ScheduleMetrics implementation

// RecordPropagation discards the propagation metric.
func (n *NopMetrics) RecordPropagation(_ /* updatedTasks */ int) {
	// No-op
}

// SyncMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State, _ /* duration */ float64) {
	// No-op
}

// RecordSyncCycle discards the sync cycle metric.
func (n *NopMetrics) RecordSyncCycle(_ /* kind */ string, _ /* duration */ float64, _ /* success */ bool) {
	// No-op
}

// RecordSnapshotPublished discards the snapshot publication metric.
func (n *NopMetrics) RecordSnapshotPublished(_ /* version */ int64, _ /* tasks */ int) {
	// No-op
}

// RecordSnapshotSize discards the snapshot size metric.
func (n *NopMetrics) RecordSnapshotSize(_ /* tasks */ int) {
	// No-op
}
