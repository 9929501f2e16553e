package changes

import (
	"cmp"
	"math"
	"slices"

	"github.com/arloliu/taskchain/types"
)

// Planned is what the planner currently knows about a task.
type Planned struct {
	Status   types.Status
	Priority int

	// User is the id of the user the task is planned for, empty when unassigned.
	User string

	// Pinned marks tasks the planner must not move.
	Pinned bool
}

// Lookup returns the planned state of a task, false when the plan does not hold it.
type Lookup func(id types.TaskID) (Planned, bool)

// FromTaskData builds a Lookup over the last known copy of each task.
//
// A task held by an actual owner is planned for that owner and pinned;
// otherwise the planning data published for the task decides.
//
// Parameters:
//   - get: Returns the last known copy of a task
//
// Returns:
//   - Lookup: Planned state derived from task data
//
// Example:
//
//	changes.Build(read, changes.FromTaskData(store.Load))
func FromTaskData(get func(types.TaskID) (types.TaskData, bool)) Lookup {
	return func(id types.TaskID) (Planned, bool) {
		t, ok := get(id)
		if !ok {
			return Planned{}, false
		}

		p := Planned{Status: t.Status, Priority: t.Priority}
		switch {
		case t.Status.IsOwned() && t.ActualOwner != "":
			p.User = t.ActualOwner
			p.Pinned = true
		case t.PlanningTask != nil:
			p.User = t.PlanningTask.AssignedUser
			p.Pinned = t.PlanningTask.Published
		}

		return p, true
	}
}

// Build classifies the re-read tasks into planning changes.
//
// The result is in application order: removals, releases, assignments grouped
// by user and ordered by published index, property changes and new tasks.
// Tasks unknown to the plan in any other status produce no change.
//
// Parameters:
//   - read: Tasks returned by the synchronization read
//   - lookup: Current planned state
//
// Returns:
//   - []types.PlanningChange: Changes to apply, nil when nothing changed
func Build(read []types.TaskData, lookup Lookup) []types.PlanningChange {
	var removed, released, assigned, properties, added []types.PlanningChange

	for _, td := range read {
		planned, ok := lookup(td.TaskID)
		if !ok {
			switch {
			case td.Status == types.StatusReady:
				added = append(added, types.PlanningChange{Kind: types.ChangeAdd, Task: td.Clone(), Index: -1})
			case td.Status.IsOwned() && td.ActualOwner != "":
				// reserved, started or suspended outside of the planner
				assigned = append(assigned, assign(td, -1))
			}

			continue
		}

		remove := false
		switch {
		case td.Status == types.StatusReady:
			if planned.Status != types.StatusReady {
				released = append(released, types.PlanningChange{Kind: types.ChangeRelease, Task: td.Clone(), Index: -1})
				// the release carries the status
				planned.Status = td.Status
			}
		case td.Status.IsOwned():
			switch {
			case td.ActualOwner == "":
				remove = true
			case td.ActualOwner != planned.User:
				assigned = append(assigned, assign(td, -1))
			case (td.PlanningTask == nil || td.PlanningTask.Published) && !planned.Pinned:
				index := -1
				if td.PlanningTask != nil {
					index = td.PlanningTask.Index
				}
				assigned = append(assigned, assign(td, index))
			}
		case td.Status.IsTerminal():
			remove = true
		}

		if remove {
			removed = append(removed, types.PlanningChange{Kind: types.ChangeRemove, Task: td.Clone(), Index: -1})
			continue
		}

		priorityChanged := td.Priority != planned.Priority
		statusChanged := td.Status != planned.Status
		if priorityChanged || statusChanged {
			properties = append(properties, types.PlanningChange{
				Kind:            types.ChangeProperty,
				Task:            td.Clone(),
				Index:           -1,
				PriorityChanged: priorityChanged,
				StatusChanged:   statusChanged,
			})
		}
	}

	slices.SortStableFunc(assigned, func(a, b types.PlanningChange) int {
		if c := cmp.Compare(a.User, b.User); c != 0 {
			return c
		}

		return cmp.Compare(indexOrder(a.Index), indexOrder(b.Index))
	})

	total := len(removed) + len(released) + len(assigned) + len(properties) + len(added)
	if total == 0 {
		return nil
	}

	out := make([]types.PlanningChange, 0, total)
	out = append(out, removed...)
	out = append(out, released...)
	out = append(out, assigned...)
	out = append(out, properties...)
	out = append(out, added...)

	return out
}

func assign(td types.TaskData, index int) types.PlanningChange {
	return types.PlanningChange{
		Kind:   types.ChangeAssign,
		Task:   td.Clone(),
		User:   td.ActualOwner,
		Index:  index,
		Pinned: true,
	}
}

// indexOrder sorts published indexes ascending and outside assignments last.
func indexOrder(index int) int {
	if index < 0 {
		return math.MaxInt
	}

	return index
}
