package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arloliu/taskchain/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered through promauto on first use, so
// constructing a PrometheusCollector never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// reader
	pageQueries     *prometheus.CounterVec
	pageLatency     prometheus.Histogram
	pageTasks       prometheus.Histogram
	pageSizeGrowths prometheus.Counter
	pageSizeMax     prometheus.Gauge
	tasksRead       prometheus.Counter
	unconfirmed     prometheus.Counter

	// schedule
	propagations    prometheus.Counter
	propagatedTasks prometheus.Histogram

	// sync
	stateTransitions   *prometheus.CounterVec
	stateDuration      *prometheus.HistogramVec
	syncCycles         *prometheus.CounterVec
	syncLatency        *prometheus.HistogramVec
	snapshotVersion    prometheus.Gauge
	snapshotsPublished prometheus.Counter
	snapshotTasks      prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "taskchain" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	mgr, err := taskchain.NewManager(&cfg, querier, taskchain.WithMetrics(metrics.NewPrometheus(reg, "")))
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "taskchain"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		factory := promauto.With(p.reg)

		p.pageQueries = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "page_queries_total",
			Help:      "Total remote page queries by result (success,failure).",
		}, []string{"result"})
		p.pageLatency = factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "page_query_seconds",
			Help:      "Latency of remote page queries in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		})
		p.pageTasks = factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "page_tasks",
			Help:      "Number of logical tasks per returned page.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		})
		p.pageSizeGrowths = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "page_size_growths_total",
			Help:      "Page size doublings caused by a task whose owner rows filled a page.",
		})
		p.pageSizeMax = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "page_size_last_growth",
			Help:      "Page size reached by the most recent doubling.",
		})
		p.tasksRead = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "tasks_read_total",
			Help:      "Total tasks returned by completed reads.",
		})
		p.unconfirmed = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "unconfirmed_flushes_total",
			Help:      "Trailing tasks flushed at stream end without proof of owner completeness.",
		})

		p.propagations = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "schedule",
			Name:      "propagations_total",
			Help:      "Total schedule propagation runs.",
		})
		p.propagatedTasks = factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "schedule",
			Name:      "propagated_tasks",
			Help:      "Number of tasks rewritten per propagation run.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		})

		p.stateTransitions = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "manager",
			Name:      "state_transitions_total",
			Help:      "Total manager state transitions by source and target state.",
		}, []string{"from", "to"})
		p.stateDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "manager",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a state before leaving it.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"state"})
		p.syncCycles = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Total synchronization cycles by kind and result.",
		}, []string{"kind", "result"})
		p.syncLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "sync",
			Name:      "cycle_seconds",
			Help:      "Latency of synchronization cycles in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind"})
		p.snapshotVersion = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "snapshot",
			Name:      "version",
			Help:      "Version of the most recently published snapshot.",
		})
		p.snapshotsPublished = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "snapshot",
			Name:      "published_total",
			Help:      "Total snapshots published to the KV bucket.",
		})
		p.snapshotTasks = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "snapshot",
			Name:      "tasks",
			Help:      "Current number of tasks in the snapshot.",
		})
	})
}

func result(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}

// RecordPageQuery implements ReaderMetrics.
func (p *PrometheusCollector) RecordPageQuery(duration float64, tasks int, success bool) {
	p.ensureRegistered()
	p.pageQueries.WithLabelValues(result(success)).Inc()
	p.pageLatency.Observe(duration)
	if success {
		p.pageTasks.Observe(float64(tasks))
	}
}

// RecordPageSizeGrowth implements ReaderMetrics.
func (p *PrometheusCollector) RecordPageSizeGrowth(pageSize int) {
	p.ensureRegistered()
	p.pageSizeGrowths.Inc()
	p.pageSizeMax.Set(float64(pageSize))
}

// RecordTasksRead implements ReaderMetrics.
func (p *PrometheusCollector) RecordTasksRead(count int) {
	p.ensureRegistered()
	p.tasksRead.Add(float64(count))
}

// RecordUnconfirmedFlush implements ReaderMetrics.
func (p *PrometheusCollector) RecordUnconfirmedFlush() {
	p.ensureRegistered()
	p.unconfirmed.Inc()
}

// RecordPropagation implements ScheduleMetrics.
func (p *PrometheusCollector) RecordPropagation(updatedTasks int) {
	p.ensureRegistered()
	p.propagations.Inc()
	p.propagatedTasks.Observe(float64(updatedTasks))
}

// RecordStateTransition implements SyncMetrics.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State, duration float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.stateDuration.WithLabelValues(from.String()).Observe(duration)
}

// RecordSyncCycle implements SyncMetrics.
func (p *PrometheusCollector) RecordSyncCycle(kind string, duration float64, success bool) {
	p.ensureRegistered()
	p.syncCycles.WithLabelValues(kind, result(success)).Inc()
	p.syncLatency.WithLabelValues(kind).Observe(duration)
}

// RecordSnapshotPublished implements SyncMetrics.
func (p *PrometheusCollector) RecordSnapshotPublished(version int64, _ /* tasks */ int) {
	p.ensureRegistered()
	p.snapshotVersion.Set(float64(version))
	p.snapshotsPublished.Inc()
}

// RecordSnapshotSize implements SyncMetrics.
func (p *PrometheusCollector) RecordSnapshotSize(tasks int) {
	p.ensureRegistered()
	p.snapshotTasks.Set(float64(tasks))
}
