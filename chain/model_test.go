package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/taskchain/types"
)

// buildChain creates one user anchored at anchor and links tasks with the given
// durations behind it, in order.
func buildChain(t *testing.T, anchor Minutes, durations ...int) (*Model, UserIndex, []TaskIndex) {
	t.Helper()

	m := NewModel()
	u, err := m.AddUser(User{ID: "user-1", Enabled: true, EndTime: anchor})
	require.NoError(t, err)

	prev := UserRef(u)
	tasks := make([]TaskIndex, 0, len(durations))
	for i, d := range durations {
		idx, err := m.AddTask(Task{ID: types.TaskID(i + 1), Duration: d})
		require.NoError(t, err)
		_, err = m.Link(idx, prev)
		require.NoError(t, err)
		tasks = append(tasks, idx)
		prev = TaskRef(idx)
	}

	return m, u, tasks
}

func TestMinutes(t *testing.T) {
	require.False(t, Unset.IsSet())
	require.Equal(t, "unset", Unset.String())
	require.Equal(t, Minutes{}, Unset)

	v, ok := At(45).Get()
	require.True(t, ok)
	require.Equal(t, 45, v)
	require.Equal(t, "45", At(45).String())
	require.Equal(t, At(0), At(0))
	require.NotEqual(t, At(0), Unset)
}

func TestRef(t *testing.T) {
	require.True(t, None.IsNone())

	ti, ok := TaskRef(3).Task()
	require.True(t, ok)
	require.Equal(t, TaskIndex(3), ti)
	_, ok = TaskRef(3).User()
	require.False(t, ok)

	ui, ok := UserRef(2).User()
	require.True(t, ok)
	require.Equal(t, UserIndex(2), ui)
	_, ok = UserRef(2).Task()
	require.False(t, ok)
}

func TestModel_AddAndLookup(t *testing.T) {
	m := NewModel()

	u, err := m.AddUser(User{ID: "mary"})
	require.NoError(t, err)
	_, err = m.AddUser(User{ID: "mary"})
	require.ErrorIs(t, err, types.ErrDuplicateID)

	ti, err := m.AddTask(Task{ID: 10, Duration: 5})
	require.NoError(t, err)
	_, err = m.AddTask(Task{ID: 10})
	require.ErrorIs(t, err, types.ErrDuplicateID)

	got, ok := m.TaskByID(10)
	require.True(t, ok)
	require.Equal(t, ti, got)
	_, ok = m.TaskByID(11)
	require.False(t, ok)

	gu, ok := m.UserByID("mary")
	require.True(t, ok)
	require.Equal(t, u, gu)
	_, ok = m.UserByID("john")
	require.False(t, ok)

	require.Equal(t, 1, m.TaskCount())
	require.Equal(t, 1, m.UserCount())
	require.False(t, m.Task(ti).IsAssigned())
	require.Equal(t, NoUser, m.Task(ti).AssignedUser())
	require.Equal(t, NoTask, m.User(u).FirstTask())
	require.Equal(t, Unset, m.EndTime(None))
}

func TestModel_ExtractTaskList(t *testing.T) {
	t.Run("returns chain order from the user", func(t *testing.T) {
		m, u, tasks := buildChain(t, At(0), 30, 45, 15)

		require.Equal(t, tasks, m.ExtractTaskList(UserRef(u)))
	})

	t.Run("starts after a task anchor", func(t *testing.T) {
		m, _, tasks := buildChain(t, At(0), 30, 45, 15)

		require.Equal(t, tasks[1:], m.ExtractTaskList(TaskRef(tasks[0])))
		require.Empty(t, m.ExtractTaskList(TaskRef(tasks[2])))
	})

	t.Run("empty for unchained anchors", func(t *testing.T) {
		m := NewModel()
		u, _ := m.AddUser(User{ID: "lonely"})

		require.Empty(t, m.ExtractTaskList(UserRef(u)))
		require.Empty(t, m.ExtractTaskList(None))
	})

	t.Run("result is a snapshot", func(t *testing.T) {
		m, u, tasks := buildChain(t, At(0), 30, 45, 15)

		list := m.ExtractTaskList(UserRef(u))
		_, err := m.Unlink(tasks[1])
		require.NoError(t, err)

		require.Len(t, list, 3)
		require.Equal(t, []TaskIndex{tasks[0], tasks[2]}, m.ExtractTaskList(UserRef(u)))
	})

	t.Run("panics on a cycle", func(t *testing.T) {
		m, u, tasks := buildChain(t, At(0), 1, 1, 1)
		// corrupt the tail so it points back at the head
		m.tasks[tasks[2]].next = tasks[0]

		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			require.ErrorIs(t, err, types.ErrChainCycle)
		}()
		m.ExtractTaskList(UserRef(u))
		t.Fatal("expected panic")
	})
}
