package reader

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/source"
	tctest "github.com/arloliu/taskchain/testing"
	"github.com/arloliu/taskchain/types"
)

var queryTime = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	queries     int
	failures    int
	growths     []int
	tasksRead   int
	unconfirmed int
}

func (m *recordingMetrics) RecordPageQuery(_ float64, _ int, success bool) {
	m.queries++
	if !success {
		m.failures++
	}
}
func (m *recordingMetrics) RecordPageSizeGrowth(pageSize int) { m.growths = append(m.growths, pageSize) }
func (m *recordingMetrics) RecordTasksRead(count int)         { m.tasksRead += count }
func (m *recordingMetrics) RecordUnconfirmedFlush()           { m.unconfirmed++ }

func withOwners(id types.TaskID, n int) types.TaskData {
	var owners []types.OrganizationalEntity
	for i := 0; i < n; i++ {
		owners = append(owners, types.NewUserEntity(fmt.Sprintf("user-%03d", i)))
	}

	return types.TaskData{TaskID: id, Status: types.StatusReady, PotentialOwners: owners}
}

func staticClock() time.Time { return queryTime }

func requireSameTasks(t *testing.T, want, got []types.TaskData) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].TaskID, got[i].TaskID, "position %d", i)
		require.Equal(t, want[i].PotentialOwners, got[i].PotentialOwners, "owners of task %d", want[i].TaskID)
	}
}

func TestReader_CompletenessAcrossPageSizes(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		tasks := tctest.GenerateTasks(seed, 60, 12)
		src := source.NewStatic(tasks, source.WithClock(staticClock))

		for _, pageSize := range []int{1, 2, 3, 5, 7, 12, 13, 50, 1000} {
			t.Run(fmt.Sprintf("seed=%d/pageSize=%d", seed, pageSize), func(t *testing.T) {
				res, err := New(src).ReadTasks(context.Background(), ReadRequest{PageSize: pageSize})

				require.NoError(t, err)
				require.Equal(t, queryTime, res.QueryTime)
				requireSameTasks(t, tasks, res.Tasks)
			})
		}
	}
}

func TestReader_RandomizedFanOut(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 4242)) //nolint:gosec // test data

	for round := 0; round < 20; round++ {
		pageSize := 1 + rng.IntN(16)
		count := rng.IntN(40)

		tasks := make([]types.TaskData, 0, count)
		id := types.TaskID(0)
		for i := 0; i < count; i++ {
			id += types.TaskID(1 + rng.IntN(4))
			// owner counts around and above multiples of the page size force straddling
			n := rng.IntN(4*pageSize + 2)
			tasks = append(tasks, withOwners(id, n))
		}

		src := source.NewStatic(tasks)
		res, err := New(src).ReadTasks(context.Background(), ReadRequest{PageSize: pageSize})

		require.NoError(t, err, "round %d", round)
		requireSameTasks(t, tasks, res.Tasks)
	}
}

func TestReader_PageSizeGrowthBound(t *testing.T) {
	const pageSize = 4
	tasks := []types.TaskData{withOwners(1, 1), withOwners(2, 3*pageSize)}
	src := source.NewStatic(tasks)
	m := &recordingMetrics{}

	res, err := New(src, WithMetrics(m)).ReadTasks(context.Background(), ReadRequest{PageSize: pageSize})

	require.NoError(t, err)
	requireSameTasks(t, tasks, res.Tasks)

	atCursor := 0
	var sizes []int
	for _, q := range src.Queries() {
		if q.FromTaskID == 2 {
			atCursor++
			sizes = append(sizes, q.PageSize)
		}
	}
	// ceil(log2(3)) + 1
	require.Equal(t, 3, atCursor)
	require.Equal(t, []int{4, 8, 16}, sizes)
	require.Equal(t, []int{8, 16}, m.growths)
	require.Equal(t, 2, m.tasksRead)
	require.Zero(t, m.unconfirmed)
}

func TestReader_PageSizeResetsAfterAdvance(t *testing.T) {
	const pageSize = 2
	tasks := []types.TaskData{withOwners(1, 4), withOwners(2, 1), withOwners(3, 1)}
	src := source.NewStatic(tasks)

	res, err := New(src).ReadTasks(context.Background(), ReadRequest{PageSize: pageSize})

	require.NoError(t, err)
	requireSameTasks(t, tasks, res.Tasks)

	queries := src.Queries()
	last := queries[len(queries)-1]
	require.Equal(t, types.TaskID(3), last.FromTaskID)
	require.Equal(t, pageSize, last.PageSize)
}

func TestReader_EmptyFirstPage(t *testing.T) {
	src := source.NewStatic(nil, source.WithClock(staticClock))

	res, err := New(src).ReadTasks(context.Background(), ReadRequest{PageSize: 10})

	require.NoError(t, err)
	require.Empty(t, res.Tasks)
	require.Equal(t, queryTime, res.QueryTime)
}

func TestReader_QueryTimeFromFirstPage(t *testing.T) {
	calls := 0
	tick := func() time.Time {
		calls++
		return queryTime.Add(time.Duration(calls) * time.Minute)
	}
	src := source.NewStatic(tctest.GenerateTasks(3, 10, 3), source.WithClock(tick))

	res, err := New(src).ReadTasks(context.Background(), ReadRequest{PageSize: 2})

	require.NoError(t, err)
	require.Greater(t, calls, 1)
	require.Equal(t, queryTime.Add(time.Minute), res.QueryTime)
}

func TestReader_PassesFilters(t *testing.T) {
	src := source.NewStatic(tctest.GenerateTasks(9, 5, 2))
	since := time.Date(2026, 1, 1, 8, 2, 0, 0, time.UTC)
	statuses := []types.Status{types.StatusReady}

	_, err := New(src).ReadTasks(context.Background(), ReadRequest{
		FromTaskID:    3,
		Statuses:      statuses,
		ModifiedSince: since,
		PageSize:      7,
		ReadMode:      types.ReadModeForAll,
	})
	require.NoError(t, err)

	first := src.Queries()[0]
	require.Equal(t, types.TaskID(3), first.FromTaskID)
	require.Equal(t, statuses, first.Statuses)
	require.Equal(t, since, first.ModifiedSince)
	require.Equal(t, types.ReadModeForAll, first.ReadMode)
	require.Zero(t, first.Page)
	require.False(t, first.SummaryOnly)
}

func TestReader_RemoteErrorIsAtomic(t *testing.T) {
	cause := errors.New("connection reset")
	src := source.NewStatic(tctest.GenerateTasks(5, 30, 4))
	calls := 0
	flaky := source.QuerierFunc(func(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
		calls++
		if calls == 3 {
			return types.TaskQueryResult{}, cause
		}

		return src.QueryTasks(ctx, q)
	})
	m := &recordingMetrics{}
	logger := logging.NewTest(t)

	res, err := New(flaky, WithMetrics(m), WithLogger(logger)).ReadTasks(context.Background(), ReadRequest{PageSize: 3})

	require.ErrorIs(t, err, types.ErrRemoteQuery)
	require.ErrorIs(t, err, cause)
	require.Empty(t, res.Tasks)
	require.True(t, res.QueryTime.IsZero())
	require.Equal(t, 3, calls, "no retry")
	require.Equal(t, 1, m.failures)
	require.Zero(t, m.tasksRead)
	require.True(t, logger.Has("ERROR", "task page query failed"))
}

func TestReader_ContextCanceledBetweenPages(t *testing.T) {
	src := source.NewStatic(tctest.GenerateTasks(5, 30, 4))
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cancelling := source.QuerierFunc(func(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
		calls++
		if calls == 2 {
			cancel()
		}

		return src.QueryTasks(context.Background(), q)
	})

	res, err := New(cancelling).ReadTasks(ctx, ReadRequest{PageSize: 3})

	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.Tasks)
	require.Equal(t, 2, calls)
}

func TestReader_InvalidPageSize(t *testing.T) {
	r := New(source.NewStatic(nil))

	_, err := r.ReadTasks(context.Background(), ReadRequest{PageSize: 0})
	require.ErrorIs(t, err, types.ErrInvalidPageSize)

	_, err = r.ReadSummaries(context.Background(), 0, nil, -1)
	require.ErrorIs(t, err, types.ErrInvalidPageSize)
}

func TestReader_FlushesUnconfirmedTrailingTask(t *testing.T) {
	// The service forgets the held-back task before it can be confirmed,
	// so the next query at the cursor comes back empty.
	held := withOwners(7, 2)
	calls := 0
	vanishing := source.QuerierFunc(func(_ context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
		calls++
		if calls == 1 {
			return types.TaskQueryResult{QueryTime: queryTime, Tasks: []types.TaskData{withOwners(5, 1), held}}, nil
		}

		return types.TaskQueryResult{QueryTime: queryTime.Add(time.Hour)}, nil
	})
	m := &recordingMetrics{}
	logger := logging.NewTest(t)

	res, err := New(vanishing, WithMetrics(m), WithLogger(logger)).ReadTasks(context.Background(), ReadRequest{PageSize: 3})

	require.NoError(t, err)
	require.Equal(t, []types.TaskID{5, 7}, []types.TaskID{res.Tasks[0].TaskID, res.Tasks[1].TaskID})
	require.Equal(t, held.PotentialOwners, res.Tasks[1].PotentialOwners)
	require.Equal(t, queryTime, res.QueryTime)
	require.Equal(t, 1, m.unconfirmed)
	require.True(t, logger.Has("WARN", "flushing unconfirmed trailing task at stream end"))
}

func TestReader_NoOwnerTasksWithUnitPages(t *testing.T) {
	tasks := []types.TaskData{withOwners(1, 0), withOwners(2, 0), withOwners(3, 2)}
	src := source.NewStatic(tasks)

	res, err := New(src).ReadTasks(context.Background(), ReadRequest{PageSize: 1})

	require.NoError(t, err)
	require.Equal(t, []types.TaskID{1, 2, 3}, []types.TaskID{res.Tasks[0].TaskID, res.Tasks[1].TaskID, res.Tasks[2].TaskID})
	require.Len(t, res.Tasks[2].PotentialOwners, 2)
}

func TestReader_ReadSummaries(t *testing.T) {
	tasks := tctest.GenerateTasks(11, 25, 5)
	src := source.NewStatic(tasks)
	m := &recordingMetrics{}

	got, err := New(src, WithMetrics(m)).ReadSummaries(context.Background(), 0, nil, 4)

	require.NoError(t, err)
	require.Len(t, got, len(tasks))
	for i := range tasks {
		require.Equal(t, tasks[i].TaskID, got[i].TaskID)
		require.Empty(t, got[i].PotentialOwners)
	}
	require.Equal(t, len(tasks), m.tasksRead)

	queries := src.Queries()
	require.Equal(t, (len(tasks)+3)/4+1, len(queries))
	for _, q := range queries {
		require.True(t, q.SummaryOnly)
	}
	require.Equal(t, tasks[3].TaskID+1, queries[1].FromTaskID)
}

func TestReader_ReadSummariesError(t *testing.T) {
	failing := source.QuerierFunc(func(context.Context, types.TaskQuery) (types.TaskQueryResult, error) {
		return types.TaskQueryResult{}, types.ErrConnectivity
	})

	got, err := New(failing).ReadSummaries(context.Background(), 0, nil, 4)

	require.Nil(t, got)
	require.ErrorIs(t, err, types.ErrRemoteQuery)
	require.ErrorIs(t, err, types.ErrConnectivity)
}
