package taskchain

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/taskchain/changes"
	"github.com/arloliu/taskchain/internal/backoff"
	"github.com/arloliu/taskchain/internal/hooks"
	"github.com/arloliu/taskchain/internal/kvutil"
	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/internal/metrics"
	"github.com/arloliu/taskchain/internal/natsutil"
	"github.com/arloliu/taskchain/internal/snapshot"
	"github.com/arloliu/taskchain/reader"
	"github.com/arloliu/taskchain/types"
)

// Sync cycle kinds reported to MetricsCollector.RecordSyncCycle.
const (
	syncKindInitial     = "initial"
	syncKindIncremental = "incremental"
	syncKindUsers       = "users"
)

// Snapshot is a consistent copy of the synchronized task and user population.
type Snapshot struct {
	// QueryTime is the service-side time of the read that produced the snapshot.
	QueryTime time.Time

	// Version is the last published KV version (0 when publishing is disabled).
	Version int64

	// Tasks holds the active tasks ordered by id.
	Tasks []TaskData

	// Users holds the user population ordered by id.
	Users []UserData
}

// Manager keeps an in-memory copy of the remote task population in sync.
//
// Manager is the main entry point of the taskchain library. It handles:
//   - The initial full read of every task in the configured statuses
//   - Periodic incremental reads of tasks modified since the previous read
//   - Periodic refresh of the user population
//   - Publishing versioned snapshots to NATS KV
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - State transitions are atomic and linearizable
//
// Lifecycle:
//   - Create with NewManager()
//   - Call Start() to load the initial snapshot and begin synchronization
//   - Use hooks to feed changes into the optimizer
//   - Call Stop() for graceful shutdown
type Manager struct {
	cfg     Config
	querier TaskQuerier

	// Optional dependencies
	users   UserSource
	js      jetstream.JetStream
	hooks   Hooks
	metrics MetricsCollector
	logger  Logger

	// Internal components
	reader    *reader.Reader
	publisher *snapshot.Publisher

	// Synchronized population
	tasks     *xsync.Map[TaskID, TaskData]
	userList  []UserData
	queryTime time.Time
	usersAt   time.Time
	dirty     bool // snapshot not published yet (failed publish or changed users)
	dataMu    sync.RWMutex

	// State management
	state      atomic.Int32 // State
	stateSince atomic.Int64 // unix nanos of the last transition

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewManager creates a new Manager instance with the provided configuration.
//
// Returns a concrete *Manager struct following the "accept interfaces, return structs" principle.
//
// Parameters:
//   - cfg: Configuration, missing values are filled with defaults
//   - querier: Remote task query service (e.g. source.NewNATSQuerier)
//   - opts: Optional configuration (JetStream, user source, hooks, metrics, logger)
//
// Returns:
//   - *Manager: Initialized manager instance
//   - error: Validation error if configuration is invalid
//
// Example:
//
//	cfg := taskchain.DefaultConfig()
//	querier := source.NewNATSQuerier(nc, cfg.QuerySubject, 0)
//	mgr, err := taskchain.NewManager(&cfg, querier,
//	    taskchain.WithJetStream(js),
//	    taskchain.WithUserSource(source.NewNATSUsers(nc, source.UsersSubject(cfg.QuerySubject), 0)),
//	)
func NewManager(cfg *Config, querier TaskQuerier, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if querier == nil {
		return nil, ErrQuerierRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	m := &Manager{
		cfg:     *cfg,
		querier: querier,
		users:   options.users,
		js:      options.js,
		hooks:   hooks.Fill(options.hooks),
		metrics: metricsCollector,
		logger:  loggerInstance,
		tasks:   xsync.NewMap[TaskID, TaskData](),
	}
	m.reader = reader.New(querier,
		reader.WithLogger(loggerInstance),
		reader.WithMetrics(metricsCollector),
	)

	m.state.Store(int32(StateInit))
	m.stateSince.Store(time.Now().UnixNano())

	return m, nil
}

// Start loads the initial snapshot and starts the background synchronization.
//
// Blocks until the initial full read completed and, when JetStream is
// configured, the first snapshot version was published.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: Startup error or context cancellation
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()

		return ErrAlreadyStarted
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	startupCtx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()

	m.transitionState(StateInit, StateLoading)

	if m.js != nil && m.cfg.KVBuckets.SnapshotBucket != "" {
		if err := m.startPublisher(startupCtx); err != nil {
			m.cancel()
			return fmt.Errorf("failed to start snapshot publisher: %w", err)
		}
	}

	if err := m.initialLoad(startupCtx); err != nil {
		m.cancel()
		return fmt.Errorf("initial load failed: %w", err)
	}

	m.transitionState(StateLoading, StateSynchronizing)

	m.wg.Add(1)
	go m.syncLoop()

	return nil
}

// Stop gracefully shuts down the manager.
//
// Safe to call multiple times - subsequent calls will return ErrNotStarted.
//
// Parameters:
//   - ctx: Context for shutdown timeout (bounded by Config.ShutdownTimeout)
//
// Returns:
//   - error: Shutdown error or timeout
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()

		return ErrNotStarted
	}

	// The sync loop flips between Synchronizing and Degraded without holding
	// mu, so retry until the shutdown transition lands.
	for {
		currentState := m.State()
		if currentState == StateShutdown {
			m.mu.Unlock()

			return ErrNotStarted
		}
		if m.transitionState(currentState, StateShutdown) {
			break
		}
	}
	m.cancel()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	m.logger.Debug("waiting for sync loop to exit...")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("manager stopped gracefully")
		return nil
	case <-ctx.Done():
		m.logError("shutdown timeout exceeded, sync loop may still be running")
		return ctx.Err()
	}
}

// State returns the current manager state.
//
// Returns:
//   - State: Current state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// WaitState waits for the manager to reach the expected state within the timeout period.
//
// The method returns a read-only channel that will receive exactly one value:
//   - nil if the expected state is reached within the timeout
//   - context.DeadlineExceeded if the timeout expires before reaching the state
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result (nil on success, error on timeout)
//
// Example:
//
//	if err := <-mgr.WaitState(taskchain.StateDegraded, 5*time.Second); err != nil {
//	    return fmt.Errorf("manager never degraded: %w", err)
//	}
func (m *Manager) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1) // Buffered to prevent goroutine leak

	go func() {
		defer close(ch)

		if m.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if m.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// Snapshot returns a copy of the current population.
//
// Returns:
//   - Snapshot: Tasks and users ordered by id, with the query time of the last successful read
func (m *Manager) Snapshot() Snapshot {
	m.dataMu.RLock()
	defer m.dataMu.RUnlock()

	return m.snapshotLocked()
}

// Task returns a copy of the task with the given id.
//
// Returns:
//   - TaskData: The task
//   - bool: false when the task is not part of the population
func (m *Manager) Task(id TaskID) (TaskData, bool) {
	t, ok := m.tasks.Load(id)
	if !ok {
		return TaskData{}, false
	}

	return t.Clone(), true
}

// TaskCount returns the number of tasks in the population.
func (m *Manager) TaskCount() int {
	return m.tasks.Size()
}

func (m *Manager) snapshotLocked() Snapshot {
	tasks := make([]TaskData, 0, m.tasks.Size())
	m.tasks.Range(func(_ TaskID, t TaskData) bool {
		tasks = append(tasks, t.Clone())
		return true
	})
	slices.SortFunc(tasks, func(a, b TaskData) int {
		return cmp.Compare(a.TaskID, b.TaskID)
	})

	users := make([]UserData, len(m.userList))
	copy(users, m.userList)

	var version int64
	if m.publisher != nil {
		version = m.publisher.CurrentVersion()
	}

	return Snapshot{
		QueryTime: m.queryTime,
		Version:   version,
		Tasks:     tasks,
		Users:     users,
	}
}

// startPublisher opens the snapshot bucket and continues its version sequence.
func (m *Manager) startPublisher(ctx context.Context) error {
	kvCfg := jetstream.KeyValueConfig{
		Bucket:  m.cfg.KVBuckets.SnapshotBucket,
		History: 1, // Keep only latest value
	}
	if m.cfg.KVBuckets.SnapshotTTL > 0 {
		kvCfg.TTL = m.cfg.KVBuckets.SnapshotTTL
	}

	const maxRetries = 5
	kv, err := kvutil.EnsureBucket(ctx, m.js, kvCfg, maxRetries)
	if err != nil {
		return natsutil.Classify(err)
	}

	m.publisher = snapshot.NewPublisher(kv, m.logger, m.metrics)

	return m.publisher.DiscoverHighestVersion(ctx)
}

// initialLoad reads every task in the configured statuses together with the users.
func (m *Manager) initialLoad(ctx context.Context) error {
	start := time.Now()

	readCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	res, err := m.reader.ReadTasks(readCtx, reader.ReadRequest{
		Statuses: m.cfg.InitStatuses,
		PageSize: m.cfg.PageSize,
		ReadMode: types.ReadModeForAll,
	})
	cancel()
	m.metrics.RecordSyncCycle(syncKindInitial, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return natsutil.Classify(err)
	}

	var users []UserData
	if m.users != nil {
		users, err = m.listUsers(ctx)
		if err != nil {
			return err
		}
	}

	m.dataMu.Lock()
	for _, t := range res.Tasks {
		m.tasks.Store(t.TaskID, t)
	}
	m.userList = users
	m.usersAt = time.Now()
	m.queryTime = res.QueryTime
	snap := m.snapshotLocked()
	m.dataMu.Unlock()

	m.metrics.RecordSnapshotSize(len(snap.Tasks))
	m.logger.Info("initial snapshot loaded",
		"tasks", len(snap.Tasks),
		"users", len(snap.Users),
		"query_time", snap.QueryTime,
		"elapsed", time.Since(start),
	)

	if err := m.publish(ctx, snap); err != nil {
		return err
	}

	if err := m.hooks.OnSnapshot(m.ctx, snap.Tasks, snap.Users, snap.QueryTime); err != nil {
		m.logError("snapshot hook error", "error", err)
	}

	return nil
}

// syncLoop runs incremental synchronization cycles until the manager stops.
//
// A failed cycle moves the manager to Degraded and the next attempt waits a
// jittered backoff instead of the sync interval. The first successful cycle
// afterwards returns to Synchronizing.
func (m *Manager) syncLoop() {
	defer m.wg.Done()

	retry := backoff.New(m.cfg.RetryBackoffBase, m.cfg.RetryBackoffMax, 0)
	timer := time.NewTimer(m.cfg.SyncInterval)
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-timer.C:
		}

		err := m.syncOnce(m.ctx)
		if m.ctx.Err() != nil {
			return
		}

		if err != nil {
			m.handleSyncError(err)
			timer.Reset(retry.Next())

			continue
		}

		retry.Reset()
		if m.State() == StateDegraded {
			m.transitionState(StateDegraded, StateSynchronizing)
		}
		timer.Reset(m.cfg.SyncInterval)
	}
}

// syncOnce performs one incremental cycle.
//
// Users are refreshed first so a failed refresh leaves the task population
// and the query time untouched for the retry.
func (m *Manager) syncOnce(ctx context.Context) error {
	if err := m.refreshUsersIfDue(ctx); err != nil {
		return err
	}

	m.dataMu.RLock()
	since := m.queryTime.Truncate(time.Second)
	m.dataMu.RUnlock()

	start := time.Now()
	readCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	res, err := m.reader.ReadTasks(readCtx, reader.ReadRequest{
		ModifiedSince: since,
		PageSize:      m.cfg.PageSize,
		ReadMode:      types.ReadModeForActiveTasksWithNoPlanningEntity,
	})
	cancel()
	m.metrics.RecordSyncCycle(syncKindIncremental, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return natsutil.Classify(err)
	}

	m.dataMu.Lock()
	changed, removed, planning := m.mergeLocked(res.Tasks)
	m.queryTime = res.QueryTime
	needPublish := m.dirty || len(changed) > 0 || len(removed) > 0
	snap := m.snapshotLocked()
	m.dataMu.Unlock()

	if len(planning) > 0 {
		m.logger.Debug("planning changes", "count", len(planning))

		if err := m.hooks.OnPlanningChanges(ctx, planning); err != nil {
			m.logError("planning changes hook error", "error", err)
		}
	}

	if len(changed) > 0 || len(removed) > 0 {
		m.metrics.RecordSnapshotSize(len(snap.Tasks))
		m.logger.Debug("tasks changed", "changed", len(changed), "removed", len(removed))

		if err := m.hooks.OnTasksChanged(ctx, changed, removed); err != nil {
			m.logError("tasks changed hook error", "error", err)
		}
	}

	if !needPublish {
		return nil
	}

	return m.publish(ctx, snap)
}

// mergeLocked applies an incremental read to the population.
//
// Tasks in a terminal status leave the population. Input data is only read for
// tasks without a planning entity, so an update without input data keeps the
// previously read values. Tasks equal to the stored copy are not reported.
// The reported tasks are classified into planning changes against the stored
// copies before those are replaced.
func (m *Manager) mergeLocked(read []TaskData) ([]TaskData, []TaskID, []PlanningChange) {
	fresh := make([]TaskData, 0, len(read))
	for _, t := range read {
		old, exists := m.tasks.Load(t.TaskID)

		if t.Status.IsTerminal() {
			if exists {
				fresh = append(fresh, t)
			}

			continue
		}

		if exists && t.InputData == nil {
			t.InputData = old.InputData
		}
		if exists && reflect.DeepEqual(old, t) {
			continue
		}

		fresh = append(fresh, t)
	}

	planning := changes.Build(fresh, changes.FromTaskData(m.tasks.Load))

	var changed []TaskData
	var removed []TaskID
	for _, t := range fresh {
		if t.Status.IsTerminal() {
			m.tasks.Delete(t.TaskID)
			removed = append(removed, t.TaskID)

			continue
		}

		m.tasks.Store(t.TaskID, t)
		changed = append(changed, t.Clone())
	}

	return changed, removed, planning
}

// refreshUsersIfDue reloads the users when UsersSyncInterval elapsed.
//
// A changed user list marks the snapshot dirty, so it is published by the
// first task read that succeeds, even when the read of this round fails.
func (m *Manager) refreshUsersIfDue(ctx context.Context) error {
	if m.users == nil {
		return nil
	}

	m.dataMu.RLock()
	due := time.Since(m.usersAt) >= m.cfg.UsersSyncInterval
	m.dataMu.RUnlock()
	if !due {
		return nil
	}

	users, err := m.listUsers(ctx)
	if err != nil {
		return err
	}

	m.dataMu.Lock()
	defer m.dataMu.Unlock()

	m.usersAt = time.Now()
	if reflect.DeepEqual(users, m.userList) {
		return nil
	}

	m.logger.Info("users changed", "before", len(m.userList), "after", len(users))
	m.userList = users
	m.dirty = true

	return nil
}

// listUsers reads the users ordered by id.
func (m *Manager) listUsers(ctx context.Context) ([]UserData, error) {
	start := time.Now()

	readCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	users, err := m.users.ListUsers(readCtx)
	cancel()
	m.metrics.RecordSyncCycle(syncKindUsers, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", natsutil.Classify(err))
	}

	slices.SortFunc(users, func(a, b UserData) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return users, nil
}

// publish writes the snapshot to KV when a publisher is configured.
func (m *Manager) publish(ctx context.Context, snap Snapshot) error {
	if m.publisher == nil {
		m.dataMu.Lock()
		m.dirty = false
		m.dataMu.Unlock()

		return nil
	}

	_, err := m.publisher.Publish(ctx, snap.Tasks, snap.Users, snap.QueryTime)

	m.dataMu.Lock()
	m.dirty = err != nil
	m.dataMu.Unlock()

	if err != nil {
		return natsutil.Classify(err)
	}

	return nil
}

// handleSyncError reports a failed cycle and degrades the manager.
func (m *Manager) handleSyncError(err error) {
	m.logger.Warn("synchronization cycle failed", "error", err, "state", m.State().String())

	if m.State() == StateSynchronizing {
		m.transitionState(StateSynchronizing, StateDegraded)
	}

	if hookErr := m.hooks.OnError(m.ctx, err); hookErr != nil {
		m.logError("error hook error", "error", hookErr)
	}
}

// transitionState transitions to a new state and triggers hooks.
//
// The transition only happens when the current state still equals from, so a
// concurrent Stop always wins over the sync loop.
//
// Returns:
//   - bool: true if the state changed
func (m *Manager) transitionState(from, to State) bool {
	if !m.isValidTransition(from, to) {
		m.logError("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return false
	}

	if !m.state.CompareAndSwap(int32(from), int32(to)) { //nolint:gosec // State values are controlled enum
		return false
	}

	now := time.Now()
	since := time.Unix(0, m.stateSince.Swap(now.UnixNano()))

	m.logger.Info("state transition",
		"from", from.String(),
		"to", to.String(),
	)

	// Run hook in background to avoid blocking the sync loop
	go func() {
		if err := m.hooks.OnStateChanged(m.ctx, from, to); err != nil {
			m.logError("state change hook error", "from", from, "to", to, "error", err)
		}
	}()

	m.metrics.RecordStateTransition(from, to, now.Sub(since).Seconds())

	return true
}

// isValidTransition validates that a state transition is allowed.
//
// Returns:
//   - bool: true if transition is valid, false otherwise
func (m *Manager) isValidTransition(from, to State) bool {
	validTransitions := map[State][]State{
		StateInit:          {StateLoading, StateShutdown},
		StateLoading:       {StateSynchronizing, StateShutdown},
		StateSynchronizing: {StateDegraded, StateShutdown},
		StateDegraded:      {StateSynchronizing, StateShutdown},
		StateShutdown:      {}, // Terminal state - no transitions allowed
	}

	return slices.Contains(validTransitions[from], to)
}

// logError logs an error message.
func (m *Manager) logError(msg string, keysAndValues ...any) {
	// Logger is always non-nil (defaults to nopLogger)
	m.logger.Error(msg, keysAndValues...)
}
