package schedule

import (
	"fmt"
	"slices"

	"github.com/arloliu/taskchain/chain"
	"github.com/arloliu/taskchain/types"
)

// Mover applies chain mutations the way an optimization engine does.
//
// For every move it notifies the observer around each changed link field,
// performs the link change on the model and then raises the propagator events
// for the affected tasks in chain order. The demo command and the tests use it
// as a stand-in for a real engine.
type Mover struct {
	model      *chain.Model
	propagator *Propagator
	observer   types.ChangeObserver
}

// NewMover creates a Mover.
//
// Parameters:
//   - model: Chain model to mutate
//   - propagator: Propagator bound to the same model
//   - observer: Engine notification sink (NopObserver when nil)
//
// Returns:
//   - *Mover: Ready to apply moves
func NewMover(model *chain.Model, propagator *Propagator, observer types.ChangeObserver) *Mover {
	if observer == nil {
		observer = NopObserver{}
	}

	return &Mover{model: model, propagator: propagator, observer: observer}
}

// Assign inserts an unchained task right after the given TaskOrUser.
//
// Returns:
//   - error: ErrInvalidLink or ErrUnknownTask when the move is not applicable
func (mv *Mover) Assign(t chain.TaskIndex, after chain.Ref) error {
	if err := mv.checkTarget(t, after); err != nil {
		return err
	}
	if mv.model.Task(t).IsAssigned() {
		return fmt.Errorf("%w: task %d is already chained", types.ErrInvalidLink, mv.model.Task(t).ID)
	}

	affected := mv.model.Affected(t, after)
	mv.before(t, affected)
	if _, err := mv.model.Link(t, after); err != nil {
		return err
	}
	mv.after(t, affected)

	mv.propagator.AfterLinkAdded(t)
	for _, idx := range mv.inChainOrder(affected) {
		if idx != t {
			mv.propagator.AfterPositionChanged(idx)
		}
	}

	return nil
}

// Move relocates a chained task right after the given TaskOrUser, possibly in another chain.
// Moving a task to its current position is a no-op.
//
// Returns:
//   - error: ErrInvalidLink or ErrUnknownTask when the move is not applicable
func (mv *Mover) Move(t chain.TaskIndex, after chain.Ref) error {
	if err := mv.checkTarget(t, after); err != nil {
		return err
	}
	if !mv.model.Task(t).IsAssigned() {
		return fmt.Errorf("%w: task %d is not chained", types.ErrInvalidLink, mv.model.Task(t).ID)
	}

	affected := mv.model.Affected(t, after)
	if len(affected) == 0 {
		return nil
	}

	mv.before(t, affected)
	if _, err := mv.model.Unlink(t); err != nil {
		return err
	}
	if _, err := mv.model.Link(t, after); err != nil {
		return err
	}
	mv.after(t, affected)

	for _, idx := range mv.inChainOrder(affected) {
		mv.propagator.AfterPositionChanged(idx)
	}

	return nil
}

// Unassign removes a chained task from its chain.
//
// The removed task keeps its last computed times; only its former follower is
// re-propagated.
//
// Returns:
//   - error: ErrInvalidLink or ErrUnknownTask when the task is not chained
func (mv *Mover) Unassign(t chain.TaskIndex) error {
	if t < 0 || int(t) >= mv.model.TaskCount() {
		return fmt.Errorf("%w: index %d", types.ErrUnknownTask, t)
	}
	task := mv.model.Task(t)
	if !task.IsAssigned() {
		return fmt.Errorf("%w: task %d is not chained", types.ErrInvalidLink, task.ID)
	}

	affected := []chain.TaskIndex{t}
	if next := task.Next(); next != chain.NoTask {
		affected = append(affected, next)
	}

	mv.propagator.BeforeLinkRemoved(t)
	mv.before(t, affected)
	changed, err := mv.model.Unlink(t)
	if err != nil {
		return err
	}
	mv.after(t, affected)
	mv.propagator.AfterLinkRemoved(t)

	for _, idx := range changed {
		mv.propagator.AfterPositionChanged(idx)
	}

	return nil
}

func (mv *Mover) checkTarget(t chain.TaskIndex, after chain.Ref) error {
	m := mv.model
	if t < 0 || int(t) >= m.TaskCount() {
		return fmt.Errorf("%w: index %d", types.ErrUnknownTask, t)
	}

	switch after.Kind {
	case chain.RefUser:
		if after.Index < 0 || after.Index >= m.UserCount() {
			return fmt.Errorf("%w: user index %d", types.ErrInvalidLink, after.Index)
		}
	case chain.RefTask:
		ai, _ := after.Task()
		if ai < 0 || int(ai) >= m.TaskCount() || !m.Task(ai).IsAssigned() {
			return fmt.Errorf("%w: anchor task index %d is not chained", types.ErrInvalidLink, ai)
		}
		if ai == t {
			return fmt.Errorf("%w: task %d cannot follow itself", types.ErrInvalidLink, m.Task(t).ID)
		}
	default:
		return fmt.Errorf("%w: empty anchor", types.ErrInvalidLink)
	}

	return nil
}

func (mv *Mover) before(t chain.TaskIndex, affected []chain.TaskIndex) {
	for _, idx := range affected {
		mv.observer.BeforeVariableChanged(mv.model.Task(idx).ID, FieldPrevious)
	}
	mv.observer.BeforeVariableChanged(mv.model.Task(t).ID, FieldUser)
}

func (mv *Mover) after(t chain.TaskIndex, affected []chain.TaskIndex) {
	for _, idx := range affected {
		mv.observer.AfterVariableChanged(mv.model.Task(idx).ID, FieldPrevious)
	}
	mv.observer.AfterVariableChanged(mv.model.Task(t).ID, FieldUser)
}

// inChainOrder sorts tasks by chain and position so upstream tasks propagate first.
func (mv *Mover) inChainOrder(tasks []chain.TaskIndex) []chain.TaskIndex {
	pos := make(map[chain.TaskIndex]int, len(tasks))
	seen := make(map[chain.UserIndex]bool)
	for _, idx := range tasks {
		u := mv.model.Task(idx).AssignedUser()
		if u == chain.NoUser || seen[u] {
			continue
		}
		seen[u] = true
		for i, ci := range mv.model.ExtractTaskList(chain.UserRef(u)) {
			pos[ci] = int(u)*mv.model.TaskCount() + i
		}
	}

	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b chain.TaskIndex) int {
		return pos[a] - pos[b]
	})

	return out
}
