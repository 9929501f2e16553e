package chain

import (
	"fmt"

	"github.com/arloliu/taskchain/types"
)

// TaskIndex is the stable arena index of a task in a Model.
type TaskIndex int

// UserIndex is the stable arena index of a user in a Model.
type UserIndex int

const (
	// NoTask marks the absence of a task (chain tail, unchained head).
	NoTask TaskIndex = -1

	// NoUser marks an unassigned task.
	NoUser UserIndex = -1
)

// RefKind discriminates the TaskOrUser variants.
type RefKind uint8

const (
	// RefNone is the empty reference (unchained task).
	RefNone RefKind = iota
	// RefUser points at a chain anchor.
	RefUser
	// RefTask points at a chain link.
	RefTask
)

// Ref is a tagged reference to either a User (chain anchor) or a Task (chain link).
//
// The zero value is the empty reference.
type Ref struct {
	Kind  RefKind
	Index int
}

// None is the empty reference.
var None = Ref{}

// UserRef returns a reference to the given user.
func UserRef(u UserIndex) Ref {
	return Ref{Kind: RefUser, Index: int(u)}
}

// TaskRef returns a reference to the given task.
func TaskRef(t TaskIndex) Ref {
	return Ref{Kind: RefTask, Index: int(t)}
}

// IsNone reports whether the reference is empty.
func (r Ref) IsNone() bool {
	return r.Kind == RefNone
}

// Task returns the referenced task index when the reference is a task.
func (r Ref) Task() (TaskIndex, bool) {
	if r.Kind != RefTask {
		return NoTask, false
	}

	return TaskIndex(r.Index), true
}

// User returns the referenced user index when the reference is a user.
func (r Ref) User() (UserIndex, bool) {
	if r.Kind != RefUser {
		return NoUser, false
	}

	return UserIndex(r.Index), true
}

// User is a chain anchor: the first task of its chain starts when the user becomes available.
type User struct {
	ID      string
	Enabled bool
	Groups  []string
	Labels  types.Labels

	// EndTime is the anchor time, e.g. the shift start. Unset when the user is not scheduled.
	EndTime Minutes

	first TaskIndex
}

// FirstTask returns the head of the user's chain, or NoTask.
func (u *User) FirstTask() TaskIndex {
	return u.first
}

// Task is a schedulable unit of work.
//
// Chain links and derived times are only modified through Model methods so the
// next pointers and the assigned user stay consistent with the previous pointer.
type Task struct {
	ID              types.TaskID
	Name            string
	Status          types.Status
	Priority        int
	Duration        int // minutes, non-negative
	Pinned          bool
	PotentialOwners []types.OrganizationalEntity
	Labels          types.Labels

	previous  Ref
	next      TaskIndex
	user      UserIndex
	startTime Minutes
	endTime   Minutes
}

// Previous returns the task or user immediately preceding this task, or None.
func (t *Task) Previous() Ref {
	return t.previous
}

// Next returns the following task in the chain, or NoTask at the tail.
func (t *Task) Next() TaskIndex {
	return t.next
}

// AssignedUser returns the chain anchor of this task, or NoUser when unchained.
func (t *Task) AssignedUser() UserIndex {
	return t.user
}

// IsAssigned reports whether the task is part of a chain.
func (t *Task) IsAssigned() bool {
	return !t.previous.IsNone()
}

// StartTime returns the derived start time.
func (t *Task) StartTime() Minutes {
	return t.startTime
}

// EndTime returns the derived end time.
func (t *Task) EndTime() Minutes {
	return t.endTime
}

// Model is an arena of tasks and users linked into chains.
//
// Every chain starts at a User and continues through Tasks linked by their
// previous/next pointers. Indices are stable for the lifetime of the model.
//
// A Model is not safe for concurrent use; the optimization engine serializes its mutations.
type Model struct {
	tasks    []Task
	users    []User
	taskByID map[types.TaskID]TaskIndex
	userByID map[string]UserIndex
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		taskByID: make(map[types.TaskID]TaskIndex),
		userByID: make(map[string]UserIndex),
	}
}

// AddUser adds a user with an empty chain.
//
// Returns:
//   - UserIndex: Arena index of the new user
//   - error: ErrDuplicateID if the user id is already present
func (m *Model) AddUser(u User) (UserIndex, error) {
	if _, ok := m.userByID[u.ID]; ok {
		return NoUser, fmt.Errorf("%w: user %q", types.ErrDuplicateID, u.ID)
	}

	u.first = NoTask
	idx := UserIndex(len(m.users))
	m.users = append(m.users, u)
	m.userByID[u.ID] = idx

	return idx, nil
}

// AddTask adds an unchained task. Any link or time state carried by t is discarded.
//
// Returns:
//   - TaskIndex: Arena index of the new task
//   - error: ErrDuplicateID if the task id is already present
func (m *Model) AddTask(t Task) (TaskIndex, error) {
	if _, ok := m.taskByID[t.ID]; ok {
		return NoTask, fmt.Errorf("%w: task %d", types.ErrDuplicateID, t.ID)
	}

	t.previous = None
	t.next = NoTask
	t.user = NoUser
	t.startTime = Unset
	t.endTime = Unset

	idx := TaskIndex(len(m.tasks))
	m.tasks = append(m.tasks, t)
	m.taskByID[t.ID] = idx

	return idx, nil
}

// TaskCount returns the number of tasks in the arena.
func (m *Model) TaskCount() int {
	return len(m.tasks)
}

// UserCount returns the number of users in the arena.
func (m *Model) UserCount() int {
	return len(m.users)
}

// Task returns the task at index i. The pointer is invalidated by AddTask.
func (m *Model) Task(i TaskIndex) *Task {
	return &m.tasks[i]
}

// User returns the user at index i. The pointer is invalidated by AddUser.
func (m *Model) User(i UserIndex) *User {
	return &m.users[i]
}

// TaskByID looks a task up by id.
func (m *Model) TaskByID(id types.TaskID) (TaskIndex, bool) {
	idx, ok := m.taskByID[id]
	if !ok {
		return NoTask, false
	}

	return idx, true
}

// UserByID looks a user up by id.
func (m *Model) UserByID(id string) (UserIndex, bool) {
	idx, ok := m.userByID[id]
	if !ok {
		return NoUser, false
	}

	return idx, true
}

// EndTime returns the end time of the referenced TaskOrUser; Unset for None.
func (m *Model) EndTime(r Ref) Minutes {
	switch r.Kind {
	case RefUser:
		return m.users[r.Index].EndTime
	case RefTask:
		return m.tasks[r.Index].endTime
	default:
		return Unset
	}
}

// Next returns the task that follows the referenced TaskOrUser, or NoTask.
func (m *Model) Next(r Ref) TaskIndex {
	switch r.Kind {
	case RefUser:
		return m.users[r.Index].first
	case RefTask:
		return m.tasks[r.Index].next
	default:
		return NoTask
	}
}

// SetStartTime writes the derived start time. Callers notify the engine around the write.
func (m *Model) SetStartTime(i TaskIndex, v Minutes) {
	m.tasks[i].startTime = v
}

// SetEndTime writes the derived end time. Callers notify the engine around the write.
func (m *Model) SetEndTime(i TaskIndex, v Minutes) {
	m.tasks[i].endTime = v
}

// ExtractTaskList returns the tasks that follow anchor, in chain order.
//
// The result is a fresh slice, so callers may mutate the chain while iterating it.
// A walk longer than the arena means the next pointers form a cycle, which is a
// programming error: ExtractTaskList panics with ErrChainCycle.
func (m *Model) ExtractTaskList(anchor Ref) []TaskIndex {
	var out []TaskIndex

	limit := len(m.tasks)
	for cur := m.Next(anchor); cur != NoTask; cur = m.tasks[cur].next {
		if len(out) >= limit {
			panic(fmt.Errorf("%w: walk from %v exceeded %d tasks", types.ErrChainCycle, anchor, limit))
		}
		out = append(out, cur)
	}

	return out
}

func (m *Model) validTask(i TaskIndex) bool {
	return i >= 0 && int(i) < len(m.tasks)
}

func (m *Model) validRef(r Ref) bool {
	switch r.Kind {
	case RefUser:
		return r.Index >= 0 && r.Index < len(m.users)
	case RefTask:
		return m.validTask(TaskIndex(r.Index))
	default:
		return false
	}
}

func (m *Model) anchorOf(r Ref) UserIndex {
	switch r.Kind {
	case RefUser:
		return UserIndex(r.Index)
	case RefTask:
		return m.tasks[r.Index].user
	default:
		return NoUser
	}
}

func (m *Model) setNext(r Ref, next TaskIndex) {
	switch r.Kind {
	case RefUser:
		m.users[r.Index].first = next
	case RefTask:
		m.tasks[r.Index].next = next
	}
}
