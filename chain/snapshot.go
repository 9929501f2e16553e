package chain

import (
	"errors"
	"fmt"

	"github.com/arloliu/taskchain/types"
)

// DurationFunc returns the duration in minutes of a task read from the task service.
type DurationFunc func(task types.TaskData) int

// UnitDuration assigns one minute to every task.
func UnitDuration(types.TaskData) int {
	return 1
}

// FromSnapshot builds an unchained model from a task and user snapshot.
//
// No chains are constructed: every task starts unassigned and every user
// starts with an empty chain and an unset anchor time.
//
// Parameters:
//   - tasks: Tasks read from the task service
//   - users: Users read from the user system
//   - durationOf: Duration provider (UnitDuration when nil)
//
// Returns:
//   - *Model: New model
//   - error: ErrDuplicateID when ids repeat
func FromSnapshot(tasks []types.TaskData, users []types.UserData, durationOf DurationFunc) (*Model, error) {
	if durationOf == nil {
		durationOf = UnitDuration
	}

	m := NewModel()
	for _, u := range users {
		if _, err := m.AddUser(User{
			ID:      u.ID,
			Enabled: u.Enabled,
			Groups:  u.Groups,
			Labels:  u.Labels,
		}); err != nil {
			return nil, err
		}
	}

	for _, td := range tasks {
		if _, err := m.AddTask(Task{
			ID:              td.TaskID,
			Name:            td.Name,
			Status:          td.Status,
			Priority:        td.Priority,
			Duration:        max(durationOf(td), 0),
			Pinned:          td.PlanningTask != nil && td.PlanningTask.Published,
			PotentialOwners: td.PotentialOwners,
			Labels:          td.Labels,
		}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CheckInvariants validates the structural chain invariants and the schedule invariant.
//
// Checked:
//   - every chain reaches its tail within the arena size
//   - previous and next pointers agree, and every chained task is reachable from a user
//   - every chained task's assigned user is the anchor of its chain
//   - start/end times match the predecessor wherever the whole upstream is set
//
// Returns:
//   - error: Joined list of violations, nil when the model is consistent
func (m *Model) CheckInvariants() error {
	var errs []error

	reached := make([]bool, len(m.tasks))
	for ui := range m.users {
		u := UserIndex(ui)
		prev := UserRef(u)
		resolved := m.users[ui].EndTime.IsSet()
		steps := 0

		for cur := m.users[ui].first; cur != NoTask; cur = m.tasks[cur].next {
			steps++
			if steps > len(m.tasks) {
				errs = append(errs, fmt.Errorf("%w: chain of user %q", types.ErrChainCycle, m.users[ui].ID))
				break
			}

			task := &m.tasks[cur]
			reached[cur] = true
			if task.previous != prev {
				errs = append(errs, fmt.Errorf("task %d: previous %+v, expected %+v", task.ID, task.previous, prev))
			}
			if task.user != u {
				errs = append(errs, fmt.Errorf("task %d: assigned user %d, expected %d", task.ID, task.user, u))
			}

			if resolved {
				want := m.EndTime(prev)
				if task.startTime != want {
					errs = append(errs, fmt.Errorf("task %d: start %v, expected %v", task.ID, task.startTime, want))
				}
				if task.endTime != At(want.Value()+task.Duration) {
					errs = append(errs, fmt.Errorf("task %d: end %v, expected %d", task.ID, task.endTime, want.Value()+task.Duration))
				}
				resolved = task.endTime.IsSet()
			}

			prev = TaskRef(cur)
		}
	}

	for ti := range m.tasks {
		if m.tasks[ti].IsAssigned() && !reached[ti] {
			errs = append(errs, fmt.Errorf("task %d is chained but unreachable from any user", m.tasks[ti].ID))
		}
	}

	return errors.Join(errs...)
}
