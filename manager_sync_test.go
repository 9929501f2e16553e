package taskchain_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/taskchain"
	"github.com/arloliu/taskchain/internal/snapshot"
	"github.com/arloliu/taskchain/source"
	tctest "github.com/arloliu/taskchain/testing"
	"github.com/arloliu/taskchain/types"
)

// changeLog accumulates OnTasksChanged calls.
type changeLog struct {
	mu      sync.Mutex
	changed map[types.TaskID]types.TaskData
	removed []types.TaskID
	calls   int
}

func newChangeLog() *changeLog {
	return &changeLog{changed: make(map[types.TaskID]types.TaskData)}
}

func (c *changeLog) hook(_ context.Context, changed []types.TaskData, removed []types.TaskID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	for _, t := range changed {
		c.changed[t.TaskID] = t
	}
	c.removed = append(c.removed, removed...)

	return nil
}

func (c *changeLog) snapshot() (map[types.TaskID]types.TaskData, []types.TaskID, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.changed, slices.Clone(c.removed), c.calls
}

func testUsers() []types.UserData {
	return []types.UserData{
		{ID: "mary", Enabled: true, Groups: []string{"HR"}},
		{ID: "john", Enabled: true, Groups: []string{"IT"}},
		{ID: "katy", Enabled: false},
	}
}

func startManager(t *testing.T, cfg *taskchain.Config, querier types.TaskQuerier, opts ...taskchain.Option) *taskchain.Manager {
	t.Helper()

	opts = append(opts, taskchain.WithLogger(tctest.NewTestLogger(t)))
	mgr, err := taskchain.NewManager(cfg, querier, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, mgr.Start(ctx))

	t.Cleanup(func() {
		_ = mgr.Stop(context.Background())
	})

	return mgr
}

func TestManager_StartLoadsInitialSnapshot(t *testing.T) {
	tasks := tctest.GenerateTasks(1, 25, 3)
	done := types.TaskData{TaskID: 1000, Status: types.StatusCompleted}
	src := source.NewStatic(append(slices.Clone(tasks), done))

	var (
		snapTasks []types.TaskData
		snapUsers []types.UserData
	)
	hooks := &taskchain.Hooks{
		OnSnapshot: func(_ context.Context, tasks []types.TaskData, users []types.UserData, _ time.Time) error {
			snapTasks, snapUsers = tasks, users
			return nil
		},
	}

	cfg := taskchain.TestConfig()
	cfg.PageSize = 4
	mgr := startManager(t, &cfg, src,
		taskchain.WithUserSource(source.NewStaticUsers(testUsers())),
		taskchain.WithHooks(hooks),
	)
	require.Equal(t, taskchain.StateSynchronizing, mgr.State())

	snap := mgr.Snapshot()
	require.Len(t, snap.Tasks, len(tasks), "completed task is not part of the initial read")
	for i, task := range snap.Tasks {
		require.Equal(t, tasks[i].TaskID, task.TaskID)
		require.Equal(t, tasks[i].PotentialOwners, task.PotentialOwners, "owner set of task %d", task.TaskID)
		require.Equal(t, tasks[i].InputData, task.InputData, "initial read loads input data")
	}
	require.Equal(t, []string{"john", "katy", "mary"}, []string{snap.Users[0].ID, snap.Users[1].ID, snap.Users[2].ID})
	require.False(t, snap.QueryTime.IsZero())
	require.Zero(t, snap.Version, "publishing disabled without JetStream")

	// Hook received the same population
	require.Len(t, snapTasks, len(tasks))
	require.Len(t, snapUsers, 3)

	first := src.Queries()[0]
	require.Equal(t, types.ReadModeForAll, first.ReadMode)
	require.Equal(t, cfg.InitStatuses, first.Statuses)
	require.True(t, first.ModifiedSince.IsZero())
}

func TestManager_IncrementalSync(t *testing.T) {
	tasks := tctest.GenerateTasks(2, 10, 2)
	src := source.NewStatic(tasks)
	log := newChangeLog()

	cfg := taskchain.TestConfig()
	mgr := startManager(t, &cfg, src, taskchain.WithHooks(&taskchain.Hooks{OnTasksChanged: log.hook}))

	now := time.Now()
	modified := tasks[0]
	modified.Priority += 100
	modified.LastModificationDate = now

	completed := tasks[1]
	completed.Status = types.StatusCompleted
	completed.LastModificationDate = now

	planned := tasks[2]
	planned.PlanningTask = &types.PlanningTask{TaskID: planned.TaskID, AssignedUser: "user-0", Published: true}
	planned.LastModificationDate = now

	created := types.TaskData{
		TaskID:               5000,
		Name:                 "new",
		Status:               types.StatusReady,
		LastModificationDate: now,
		PotentialOwners:      []types.OrganizationalEntity{types.NewUserEntity("user-9")},
		InputData:            map[string]any{"fresh": true},
	}

	src.Upsert(modified, completed, planned, created)

	require.Eventually(t, func() bool {
		changed, removed, _ := log.snapshot()
		return len(changed) == 3 && slices.Equal(removed, []types.TaskID{tasks[1].TaskID})
	}, 3*time.Second, 20*time.Millisecond)

	changed, _, calls := log.snapshot()
	require.Equal(t, modified.Priority, changed[modified.TaskID].Priority)
	require.NotNil(t, changed[planned.TaskID].PlanningTask)
	require.Equal(t, tasks[2].InputData, changed[planned.TaskID].InputData, "input data kept for planned task")
	require.Equal(t, created.InputData, changed[5000].InputData)

	_, ok := mgr.Task(tasks[1].TaskID)
	require.False(t, ok)
	require.Equal(t, len(tasks), mgr.TaskCount(), "one removed, one added")

	// Re-reading the same modifications in later cycles reports nothing new.
	time.Sleep(5 * cfg.SyncInterval)
	_, _, later := log.snapshot()
	require.Equal(t, calls, later)

	// Incremental reads ask for modifications with whole-second precision
	incremental := src.Queries()[1:]
	require.NotEmpty(t, incremental)
	for _, q := range incremental {
		require.Equal(t, types.ReadModeForActiveTasksWithNoPlanningEntity, q.ReadMode)
		require.Empty(t, q.Statuses)
		require.True(t, q.ModifiedSince.Equal(q.ModifiedSince.Truncate(time.Second)))
		require.False(t, q.ModifiedSince.IsZero())
	}
}

func TestManager_PlanningChangesHook(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	src := source.NewStatic([]types.TaskData{
		{TaskID: 1, Status: types.StatusReady, Priority: 1, LastModificationDate: base},
		{TaskID: 2, Status: types.StatusReady, Priority: 1, LastModificationDate: base},
		{TaskID: 3, Status: types.StatusInProgress, Priority: 1, ActualOwner: "mary", LastModificationDate: base},
	})

	var (
		mu  sync.Mutex
		got []types.PlanningChange
	)
	hooks := &taskchain.Hooks{
		OnPlanningChanges: func(_ context.Context, changes []types.PlanningChange) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, changes...)

			return nil
		},
	}

	cfg := taskchain.TestConfig()
	startManager(t, &cfg, src, taskchain.WithHooks(hooks))

	now := time.Now()
	src.Upsert(
		types.TaskData{TaskID: 1, Status: types.StatusReserved, Priority: 1, ActualOwner: "john", LastModificationDate: now},
		types.TaskData{TaskID: 2, Status: types.StatusCompleted, Priority: 1, LastModificationDate: now},
		types.TaskData{TaskID: 3, Status: types.StatusInProgress, Priority: 5, ActualOwner: "mary", LastModificationDate: now},
		types.TaskData{TaskID: 7, Status: types.StatusReady, Priority: 2, LastModificationDate: now},
	)

	collected := func() []types.PlanningChange {
		mu.Lock()
		defer mu.Unlock()

		return slices.Clone(got)
	}
	require.Eventually(t, func() bool {
		return len(collected()) == 5
	}, 3*time.Second, 20*time.Millisecond)

	// Re-reading the same modifications classifies to nothing.
	time.Sleep(5 * cfg.SyncInterval)
	list := collected()
	require.Len(t, list, 5)

	type entry struct {
		kind types.ChangeKind
		id   types.TaskID
	}
	var entries []entry
	for _, c := range list {
		entries = append(entries, entry{c.Kind, c.Task.TaskID})
	}
	require.Equal(t, []entry{
		{types.ChangeRemove, 2},
		{types.ChangeAssign, 1},
		{types.ChangeProperty, 1},
		{types.ChangeProperty, 3},
		{types.ChangeAdd, 7},
	}, entries)

	require.Equal(t, "john", list[1].User)
	require.True(t, list[1].Pinned)
	require.True(t, list[2].StatusChanged)
	require.False(t, list[2].PriorityChanged)
	require.True(t, list[3].PriorityChanged)
}

func TestManager_UsersRefresh(t *testing.T) {
	users := source.NewStaticUsers(testUsers())

	cfg := taskchain.TestConfig()
	mgr := startManager(t, &cfg, source.NewStatic(tctest.GenerateTasks(3, 3, 1)), taskchain.WithUserSource(users))
	require.Len(t, mgr.Snapshot().Users, 3)

	users.Update(append(testUsers(), types.UserData{ID: "zoe", Enabled: true}))

	require.Eventually(t, func() bool {
		return len(mgr.Snapshot().Users) == 4
	}, 3*time.Second, 20*time.Millisecond)
}

// usersFunc adapts a function to types.UserSource.
type usersFunc func(ctx context.Context) ([]types.UserData, error)

func (f usersFunc) ListUsers(ctx context.Context) ([]types.UserData, error) {
	return f(ctx)
}

func TestManager_PublishesUsersChangedBeforeFailedRead(t *testing.T) {
	_, nc := tctest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	src := source.NewStatic(tctest.GenerateTasks(6, 4, 1))
	users := source.NewStaticUsers(testUsers())

	var (
		failNext atomic.Bool
		failures atomic.Int32
		armed    atomic.Bool
	)
	querier := source.QuerierFunc(func(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
		if failNext.CompareAndSwap(true, false) {
			failures.Add(1)
			return types.TaskQueryResult{}, errors.New("service unavailable")
		}
		return src.QueryTasks(ctx, q)
	})
	// The first listing of the new users makes the task read of the same round fail.
	userSource := usersFunc(func(ctx context.Context) ([]types.UserData, error) {
		list, err := users.ListUsers(ctx)
		if len(list) == 4 && armed.CompareAndSwap(false, true) {
			failNext.Store(true)
		}
		return list, err
	})

	cfg := taskchain.TestConfig()
	cfg.KVBuckets.SnapshotBucket = "test-manager-users-snapshot"
	mgr := startManager(t, &cfg, querier, taskchain.WithJetStream(js), taskchain.WithUserSource(userSource))
	require.Equal(t, int64(1), mgr.Snapshot().Version)

	users.Update(append(testUsers(), types.UserData{ID: "zoe", Enabled: true}))

	require.Eventually(t, func() bool {
		return mgr.Snapshot().Version == 2
	}, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, int32(1), failures.Load())

	kv, err := js.KeyValue(context.Background(), cfg.KVBuckets.SnapshotBucket)
	require.NoError(t, err)
	entry, err := kv.Get(context.Background(), snapshot.CurrentKey)
	require.NoError(t, err)

	var stored snapshot.Snapshot
	require.NoError(t, json.Unmarshal(entry.Value(), &stored))
	require.Len(t, stored.Users, 4)
	require.Len(t, stored.Tasks, 4)
}

func TestManager_DegradesAndRecovers(t *testing.T) {
	src := source.NewStatic(tctest.GenerateTasks(4, 5, 2))

	var failing atomic.Bool
	querier := source.QuerierFunc(func(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
		if failing.Load() {
			return types.TaskQueryResult{}, errors.New("service unavailable")
		}
		return src.QueryTasks(ctx, q)
	})

	errs := make(chan error, 16)
	hooks := &taskchain.Hooks{
		OnError: func(_ context.Context, err error) error {
			select {
			case errs <- err:
			default:
			}
			return nil
		},
	}

	cfg := taskchain.TestConfig()
	mgr := startManager(t, &cfg, querier, taskchain.WithHooks(hooks))

	failing.Store(true)
	require.NoError(t, <-mgr.WaitState(taskchain.StateDegraded, 3*time.Second))

	err := <-errs
	require.ErrorIs(t, err, taskchain.ErrRemoteQuery)

	// The last good snapshot is still served while degraded
	require.Len(t, mgr.Snapshot().Tasks, 5)

	failing.Store(false)
	require.NoError(t, <-mgr.WaitState(taskchain.StateSynchronizing, 3*time.Second))
}

func TestManager_StartFailure(t *testing.T) {
	querier := source.QuerierFunc(func(context.Context, types.TaskQuery) (types.TaskQueryResult, error) {
		return types.TaskQueryResult{}, errors.New("boom")
	})

	cfg := taskchain.TestConfig()
	mgr, err := taskchain.NewManager(&cfg, querier)
	require.NoError(t, err)

	err = mgr.Start(context.Background())
	require.ErrorIs(t, err, taskchain.ErrRemoteQuery)
	require.Equal(t, taskchain.StateLoading, mgr.State())

	require.NoError(t, mgr.Stop(context.Background()))
	require.Equal(t, taskchain.StateShutdown, mgr.State())
}

func TestManager_Lifecycle(t *testing.T) {
	cfg := taskchain.TestConfig()
	mgr, err := taskchain.NewManager(&cfg, source.NewStatic(nil))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	require.ErrorIs(t, mgr.Start(ctx), taskchain.ErrAlreadyStarted)
	require.Empty(t, mgr.Snapshot().Tasks)

	require.NoError(t, mgr.Stop(ctx))
	require.Equal(t, taskchain.StateShutdown, mgr.State())
	require.ErrorIs(t, mgr.Stop(ctx), taskchain.ErrNotStarted)
}

func TestManager_PublishesSnapshots(t *testing.T) {
	_, nc := tctest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	tasks := tctest.GenerateTasks(5, 8, 2)
	src := source.NewStatic(tasks)

	cfg := taskchain.TestConfig()
	cfg.KVBuckets.SnapshotBucket = "test-manager-snapshot"
	mgr := startManager(t, &cfg, src, taskchain.WithJetStream(js))
	require.Equal(t, int64(1), mgr.Snapshot().Version)

	kv, err := js.KeyValue(context.Background(), cfg.KVBuckets.SnapshotBucket)
	require.NoError(t, err)

	load := func() snapshot.Snapshot {
		entry, err := kv.Get(context.Background(), snapshot.CurrentKey)
		require.NoError(t, err)

		var snap snapshot.Snapshot
		require.NoError(t, json.Unmarshal(entry.Value(), &snap))

		return snap
	}

	stored := load()
	require.Equal(t, int64(1), stored.Version)
	require.Len(t, stored.Tasks, len(tasks))

	changed := tasks[4]
	changed.Status = types.StatusObsolete
	changed.LastModificationDate = time.Now()
	src.Upsert(changed)

	require.Eventually(t, func() bool {
		return mgr.Snapshot().Version == 2
	}, 3*time.Second, 20*time.Millisecond)

	stored = load()
	require.Equal(t, int64(2), stored.Version)
	require.Len(t, stored.Tasks, len(tasks)-1)

	// Idle cycles do not publish new versions
	time.Sleep(5 * cfg.SyncInterval)
	require.Equal(t, int64(2), mgr.Snapshot().Version)

	// A restarted manager continues the version sequence and skips unchanged content
	require.NoError(t, mgr.Stop(context.Background()))
	restarted := startManager(t, &cfg, src, taskchain.WithJetStream(js))
	require.Equal(t, int64(2), restarted.Snapshot().Version)
}
