package chain

import (
	"fmt"

	"github.com/arloliu/taskchain/types"
)

// Link inserts the unchained task t right after the given TaskOrUser.
//
// The task takes over the position of whatever followed after, and that
// follower is re-linked behind t. The anchor user of t becomes the anchor of
// after. Derived times are not touched: recomputing them is the propagator's job.
//
// Parameters:
//   - t: Unchained task to insert
//   - after: User or assigned task to insert behind
//
// Returns:
//   - []TaskIndex: Tasks whose previous pointer changed, in chain order
//   - error: ErrUnknownTask or ErrInvalidLink when the link would break an invariant
func (m *Model) Link(t TaskIndex, after Ref) ([]TaskIndex, error) {
	if !m.validTask(t) {
		return nil, fmt.Errorf("%w: index %d", types.ErrUnknownTask, t)
	}
	if !m.validRef(after) {
		return nil, fmt.Errorf("%w: anchor %+v does not exist", types.ErrInvalidLink, after)
	}

	task := &m.tasks[t]
	if task.IsAssigned() {
		return nil, fmt.Errorf("%w: task %d is already chained", types.ErrInvalidLink, task.ID)
	}
	if after == TaskRef(t) {
		return nil, fmt.Errorf("%w: task %d cannot follow itself", types.ErrInvalidLink, task.ID)
	}
	anchor := m.anchorOf(after)
	if anchor == NoUser {
		return nil, fmt.Errorf("%w: anchor %+v is not part of a chain", types.ErrInvalidLink, after)
	}

	follower := m.Next(after)

	m.setNext(after, t)
	task.previous = after
	task.next = follower
	task.user = anchor

	changed := []TaskIndex{t}
	if follower != NoTask {
		m.tasks[follower].previous = TaskRef(t)
		changed = append(changed, follower)
	}

	return changed, nil
}

// Unlink removes t from its chain and closes the gap behind it.
//
// Returns:
//   - []TaskIndex: The former follower of t whose previous pointer changed (empty at the tail)
//   - error: ErrUnknownTask or ErrInvalidLink when t is not chained
func (m *Model) Unlink(t TaskIndex) ([]TaskIndex, error) {
	if !m.validTask(t) {
		return nil, fmt.Errorf("%w: index %d", types.ErrUnknownTask, t)
	}

	task := &m.tasks[t]
	if !task.IsAssigned() {
		return nil, fmt.Errorf("%w: task %d is not chained", types.ErrInvalidLink, task.ID)
	}

	prev := task.previous
	follower := task.next

	m.setNext(prev, follower)
	task.previous = None
	task.next = NoTask
	task.user = NoUser

	if follower == NoTask {
		return nil, nil
	}
	m.tasks[follower].previous = prev

	return []TaskIndex{follower}, nil
}

// Affected returns the tasks whose previous pointer would change if t were
// moved right after the given TaskOrUser, without modifying the model.
//
// The engine uses it to raise before-change notifications ahead of the move.
// A move to the current position affects nothing and returns nil.
func (m *Model) Affected(t TaskIndex, after Ref) []TaskIndex {
	task := &m.tasks[t]
	if task.previous == after {
		return nil
	}

	out := []TaskIndex{t}
	if task.IsAssigned() && task.next != NoTask {
		out = append(out, task.next)
	}

	follower := m.Next(after)
	if follower != NoTask && follower != t && follower != task.next {
		out = append(out, follower)
	}

	return out
}
