package changes

import (
	"fmt"

	"github.com/arloliu/taskchain/chain"
	"github.com/arloliu/taskchain/schedule"
	"github.com/arloliu/taskchain/types"
)

// Plan applies planning changes to a chain model.
//
// Removed tasks stay in the model's arena, unchained, so their indices remain
// stable; Lookup no longer reports them and a later Add or Assign revives them.
//
// A Plan is not safe for concurrent use.
type Plan struct {
	model      *chain.Model
	mover      *schedule.Mover
	durationOf chain.DurationFunc
	removed    map[types.TaskID]bool
}

// NewPlan creates a Plan over model.
//
// Parameters:
//   - model: Chain model holding the current plan
//   - mover: Mover bound to the same model
//   - durationOf: Duration of tasks added by a change (UnitDuration when nil)
//
// Returns:
//   - *Plan: Ready to apply changes
//
// Example:
//
//	mover := schedule.NewMover(model, schedule.NewPropagator(model, engine), engine)
//	plan := changes.NewPlan(model, mover, nil)
//	err := plan.Apply(changes.Build(read, plan.Lookup))
func NewPlan(model *chain.Model, mover *schedule.Mover, durationOf chain.DurationFunc) *Plan {
	if durationOf == nil {
		durationOf = chain.UnitDuration
	}

	return &Plan{
		model:      model,
		mover:      mover,
		durationOf: durationOf,
		removed:    make(map[types.TaskID]bool),
	}
}

// Lookup reports the planned state of a task held by the model.
func (p *Plan) Lookup(id types.TaskID) (Planned, bool) {
	idx, ok := p.model.TaskByID(id)
	if !ok || p.removed[id] {
		return Planned{}, false
	}

	t := p.model.Task(idx)
	planned := Planned{Status: t.Status, Priority: t.Priority, Pinned: t.Pinned}
	if u := t.AssignedUser(); u != chain.NoUser {
		planned.User = p.model.User(u).ID
	}

	return planned, true
}

// Apply applies the changes in order.
//
// Returns:
//   - error: The first change that could not be applied, wrapped with its task id
func (p *Plan) Apply(list []types.PlanningChange) error {
	for _, c := range list {
		var err error
		switch c.Kind {
		case types.ChangeRemove:
			err = p.remove(c.Task)
		case types.ChangeRelease:
			err = p.release(c.Task)
		case types.ChangeAssign:
			err = p.assign(c)
		case types.ChangeProperty:
			err = p.property(c)
		case types.ChangeAdd:
			_, err = p.ensureTask(c.Task)
		default:
			err = fmt.Errorf("unknown change kind %d", c.Kind)
		}
		if err != nil {
			return fmt.Errorf("apply %s change of task %d: %w", c.Kind, c.Task.TaskID, err)
		}
	}

	return nil
}

func (p *Plan) remove(td types.TaskData) error {
	idx, ok := p.model.TaskByID(td.TaskID)
	if !ok {
		return fmt.Errorf("%w: id %d", types.ErrUnknownTask, td.TaskID)
	}
	if err := p.unchain(idx); err != nil {
		return err
	}

	t := p.model.Task(idx)
	t.Status = td.Status
	t.Pinned = false
	p.removed[td.TaskID] = true

	return nil
}

func (p *Plan) release(td types.TaskData) error {
	idx, ok := p.model.TaskByID(td.TaskID)
	if !ok {
		return fmt.Errorf("%w: id %d", types.ErrUnknownTask, td.TaskID)
	}
	if err := p.unchain(idx); err != nil {
		return err
	}

	t := p.model.Task(idx)
	t.Status = td.Status
	t.Pinned = false

	return nil
}

// assign moves the task behind the pinned head of the user's chain and pins it.
func (p *Plan) assign(c types.PlanningChange) error {
	idx, err := p.ensureTask(c.Task)
	if err != nil {
		return err
	}
	u, err := p.ensureUser(c.User)
	if err != nil {
		return err
	}
	if err := p.unchain(idx); err != nil {
		return err
	}

	after := chain.UserRef(u)
	for _, ti := range p.model.ExtractTaskList(chain.UserRef(u)) {
		if !p.model.Task(ti).Pinned {
			break
		}
		after = chain.TaskRef(ti)
	}
	if err := p.mover.Assign(idx, after); err != nil {
		return err
	}
	p.model.Task(idx).Pinned = c.Pinned

	return nil
}

func (p *Plan) property(c types.PlanningChange) error {
	idx, ok := p.model.TaskByID(c.Task.TaskID)
	if !ok {
		return fmt.Errorf("%w: id %d", types.ErrUnknownTask, c.Task.TaskID)
	}

	t := p.model.Task(idx)
	if c.PriorityChanged {
		t.Priority = c.Task.Priority
	}
	if c.StatusChanged {
		t.Status = c.Task.Status
	}

	return nil
}

// ensureTask returns the index of the task, adding it or reviving a removed one.
func (p *Plan) ensureTask(td types.TaskData) (chain.TaskIndex, error) {
	idx, ok := p.model.TaskByID(td.TaskID)
	if !ok {
		return p.model.AddTask(chain.Task{
			ID:              td.TaskID,
			Name:            td.Name,
			Status:          td.Status,
			Priority:        td.Priority,
			Duration:        max(p.durationOf(td), 0),
			PotentialOwners: td.PotentialOwners,
			Labels:          td.Labels,
		})
	}

	if p.removed[td.TaskID] {
		delete(p.removed, td.TaskID)

		t := p.model.Task(idx)
		t.Name = td.Name
		t.Status = td.Status
		t.Priority = td.Priority
		t.Duration = max(p.durationOf(td), 0)
		t.PotentialOwners = td.PotentialOwners
		t.Labels = td.Labels
		t.Pinned = false
	}

	return idx, nil
}

// ensureUser returns the user's index. Users unknown to the model are added
// enabled, since the task service may delegate to users outside the user system.
func (p *Plan) ensureUser(id string) (chain.UserIndex, error) {
	if u, ok := p.model.UserByID(id); ok {
		return u, nil
	}

	return p.model.AddUser(chain.User{ID: id, Enabled: true})
}

func (p *Plan) unchain(idx chain.TaskIndex) error {
	if !p.model.Task(idx).IsAssigned() {
		return nil
	}

	return p.mover.Unassign(idx)
}
