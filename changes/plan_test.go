package changes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/taskchain/chain"
	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/schedule"
	"github.com/arloliu/taskchain/types"
)

type planFixture struct {
	model    *chain.Model
	observer *schedule.RecordingObserver
	plan     *Plan
	users    map[string]chain.UserIndex
}

// newPlanFixture plans alice: 1[0-30] (pinned, Reserved) -> 2[30-75] -> 3[75-90]
// and bob: 4[0-20]. Tasks 2 to 4 are Ready.
func newPlanFixture(t *testing.T) *planFixture {
	t.Helper()

	m := chain.NewModel()
	f := &planFixture{model: m, observer: schedule.NewRecordingObserver(), users: map[string]chain.UserIndex{}}
	for _, id := range []string{"alice", "bob"} {
		u, err := m.AddUser(chain.User{ID: id, Enabled: true, EndTime: chain.At(0)})
		require.NoError(t, err)
		f.users[id] = u
	}

	prop := schedule.NewPropagator(m, f.observer, schedule.WithLogger(logging.NewTest(t)))
	mover := schedule.NewMover(m, prop, f.observer)
	f.plan = NewPlan(m, mover, nil)

	prev := map[string]chain.Ref{"alice": chain.UserRef(f.users["alice"]), "bob": chain.UserRef(f.users["bob"])}
	for _, step := range []struct {
		id       types.TaskID
		user     string
		duration int
		status   types.Status
		pinned   bool
	}{
		{1, "alice", 30, types.StatusReserved, true},
		{2, "alice", 45, types.StatusReady, false},
		{3, "alice", 15, types.StatusReady, false},
		{4, "bob", 20, types.StatusReady, false},
	} {
		idx, err := m.AddTask(chain.Task{ID: step.id, Duration: step.duration, Status: step.status, Priority: 1, Pinned: step.pinned})
		require.NoError(t, err)
		require.NoError(t, mover.Assign(idx, prev[step.user]))
		prev[step.user] = chain.TaskRef(idx)
	}
	f.observer.Reset()

	return f
}

func (f *planFixture) chainOf(user string) []types.TaskID {
	var ids []types.TaskID
	for _, idx := range f.model.ExtractTaskList(chain.UserRef(f.users[user])) {
		ids = append(ids, f.model.Task(idx).ID)
	}

	return ids
}

func (f *planFixture) task(id types.TaskID) *chain.Task {
	idx, _ := f.model.TaskByID(id)
	return f.model.Task(idx)
}

// sync classifies read against the plan, applies the result and checks the model.
func (f *planFixture) sync(t *testing.T, read ...types.TaskData) []types.PlanningChange {
	t.Helper()

	list := Build(read, f.plan.Lookup)
	require.NoError(t, f.plan.Apply(list))
	require.NoError(t, f.model.CheckInvariants())
	require.True(t, f.observer.Balanced(), f.observer.Violations)
	require.Nil(t, Build(read, f.plan.Lookup), "applied changes leave nothing to classify")

	return list
}

func TestPlan_Lookup(t *testing.T) {
	f := newPlanFixture(t)

	p, ok := f.plan.Lookup(1)
	require.True(t, ok)
	require.Equal(t, Planned{Status: types.StatusReserved, Priority: 1, User: "alice", Pinned: true}, p)

	p, ok = f.plan.Lookup(4)
	require.True(t, ok)
	require.Equal(t, Planned{Status: types.StatusReady, Priority: 1, User: "bob"}, p)

	_, ok = f.plan.Lookup(99)
	require.False(t, ok)
}

func TestPlan_ReassignPinsAtHeadOfNewChain(t *testing.T) {
	f := newPlanFixture(t)

	list := f.sync(t, task(2, types.StatusReserved, "bob"))
	require.Equal(t, []types.ChangeKind{types.ChangeAssign, types.ChangeProperty}, kinds(list))

	require.Equal(t, []types.TaskID{1, 3}, f.chainOf("alice"))
	require.Equal(t, []types.TaskID{2, 4}, f.chainOf("bob"))

	moved := f.task(2)
	require.True(t, moved.Pinned)
	require.Equal(t, types.StatusReserved, moved.Status)
	require.Equal(t, chain.At(45), moved.EndTime())
	require.Equal(t, chain.At(65), f.task(4).EndTime())
	require.Equal(t, chain.At(45), f.task(3).EndTime(), "alice's tail moves up")
	require.NotEmpty(t, f.observer.Writes())
}

func TestPlan_AssignGoesAfterPinnedTasks(t *testing.T) {
	f := newPlanFixture(t)

	f.sync(t, task(4, types.StatusInProgress, "alice"))

	require.Equal(t, []types.TaskID{1, 4, 2, 3}, f.chainOf("alice"))
	require.Empty(t, f.chainOf("bob"))
	require.Equal(t, chain.At(30), f.task(4).StartTime())
	require.Equal(t, chain.At(50), f.task(4).EndTime())
	require.Equal(t, chain.At(110), f.task(3).EndTime())
}

func TestPlan_PinAtPublishedIndex(t *testing.T) {
	f := newPlanFixture(t)

	list := f.sync(t, withPlanning(task(3, types.StatusReserved, "alice"), "alice", 2, true))
	require.Equal(t, types.ChangeAssign, list[0].Kind)
	require.Equal(t, 2, list[0].Index)

	require.Equal(t, []types.TaskID{1, 3, 2}, f.chainOf("alice"))
	require.True(t, f.task(3).Pinned)
	require.False(t, f.task(2).Pinned)
}

func TestPlan_Release(t *testing.T) {
	f := newPlanFixture(t)

	list := f.sync(t, task(1, types.StatusReady, ""))
	require.Equal(t, []types.ChangeKind{types.ChangeRelease}, kinds(list))

	require.Equal(t, []types.TaskID{2, 3}, f.chainOf("alice"))
	released := f.task(1)
	require.False(t, released.IsAssigned())
	require.False(t, released.Pinned)
	require.Equal(t, types.StatusReady, released.Status)
	require.Equal(t, chain.At(45), f.task(2).EndTime())

	p, ok := f.plan.Lookup(1)
	require.True(t, ok)
	require.Empty(t, p.User)
}

func TestPlan_RemoveAndRevive(t *testing.T) {
	f := newPlanFixture(t)

	list := f.sync(t, task(1, types.StatusCompleted, "alice"), task(4, types.StatusReserved, ""))
	require.Equal(t, []types.ChangeKind{types.ChangeRemove, types.ChangeRemove}, kinds(list))

	require.Equal(t, []types.TaskID{2, 3}, f.chainOf("alice"))
	require.Empty(t, f.chainOf("bob"))
	_, ok := f.plan.Lookup(1)
	require.False(t, ok)
	require.Equal(t, 4, f.model.TaskCount(), "removed tasks keep their arena slot")

	list = f.sync(t, task(4, types.StatusReady, ""))
	require.Equal(t, []types.ChangeKind{types.ChangeAdd}, kinds(list))
	p, ok := f.plan.Lookup(4)
	require.True(t, ok)
	require.Equal(t, Planned{Status: types.StatusReady, Priority: 1}, p)
	require.Equal(t, 1, f.task(4).Duration, "revived with the plan's duration")
}

func TestPlan_AddAndProperty(t *testing.T) {
	f := newPlanFixture(t)

	bumped := task(3, types.StatusReady, "")
	bumped.Priority = 8
	list := f.sync(t, bumped, task(9, types.StatusReady, ""))
	require.Equal(t, []types.ChangeKind{types.ChangeProperty, types.ChangeAdd}, kinds(list))

	require.Equal(t, 8, f.task(3).Priority)
	added := f.task(9)
	require.False(t, added.IsAssigned())
	require.Equal(t, 1, added.Duration)
	require.Equal(t, 5, f.model.TaskCount())
}

func TestPlan_AssignToUnknownUser(t *testing.T) {
	f := newPlanFixture(t)

	f.sync(t, task(9, types.StatusReserved, "carol"))

	u, ok := f.model.UserByID("carol")
	require.True(t, ok)
	require.True(t, f.model.User(u).Enabled)
	require.Equal(t, []types.TaskID{9}, f.chainOf("carol"))
	require.False(t, f.task(9).StartTime().IsSet(), "carol has no anchor time")
}

func TestPlan_ApplyUnknownTask(t *testing.T) {
	f := newPlanFixture(t)

	err := f.plan.Apply([]types.PlanningChange{{Kind: types.ChangeRemove, Task: task(42, types.StatusCompleted, "")}})
	require.ErrorIs(t, err, types.ErrUnknownTask)

	err = f.plan.Apply([]types.PlanningChange{{Kind: types.ChangeProperty, Task: task(42, types.StatusReady, "")}})
	require.ErrorIs(t, err, types.ErrUnknownTask)
}
