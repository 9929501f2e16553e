package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking. ScheduleMetrics is called on the
// optimizer hot path and must be cheap.
type MetricsCollector interface {
	ReaderMetrics
	ScheduleMetrics
	SyncMetrics
}

// ReaderMetrics defines metrics for the paginated task reader.
type ReaderMetrics interface {
	// RecordPageQuery records one remote page query.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - tasks: Number of logical tasks in the returned page
	//   - success: false if the query failed
	RecordPageQuery(duration float64, tasks int, success bool)

	// RecordPageSizeGrowth records a page size doubling caused by a task whose
	// owner rows filled a whole page.
	RecordPageSizeGrowth(pageSize int)

	// RecordTasksRead records the number of tasks returned by a complete read.
	RecordTasksRead(count int)

	// RecordUnconfirmedFlush records a trailing task flushed without proof of completeness.
	RecordUnconfirmedFlush()
}

// ScheduleMetrics defines metrics for the schedule propagator.
type ScheduleMetrics interface {
	// RecordPropagation records one propagation run and the number of tasks it rewrote.
	RecordPropagation(updatedTasks int)
}

// SyncMetrics defines metrics for the snapshot synchronizer.
type SyncMetrics interface {
	// RecordStateTransition records a manager state transition.
	RecordStateTransition(from, to State, duration float64)

	// RecordSyncCycle records a synchronization cycle.
	//
	// Parameters:
	//   - kind: "initial", "incremental" or "users"
	//   - duration: Time taken in seconds
	//   - success: false if the cycle failed
	RecordSyncCycle(kind string, duration float64, success bool)

	// RecordSnapshotPublished records a snapshot publication to NATS KV.
	RecordSnapshotPublished(version int64, tasks int)

	// RecordSnapshotSize sets the current number of tasks in the snapshot (gauge).
	RecordSnapshotSize(tasks int)
}
