package schedule

import (
	"fmt"

	"github.com/arloliu/taskchain/chain"
	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/internal/metrics"
	"github.com/arloliu/taskchain/types"
)

// Tracked field names reported to the ChangeObserver.
const (
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
	FieldPrevious  = "previousTaskOrUser"
	FieldUser      = "user"
)

// Option configures a Propagator.
type Option func(*Propagator)

// WithMetrics sets the metrics sink for propagation runs.
//
// Parameters:
//   - m: ScheduleMetrics implementation (nil keeps the no-op default)
//
// Returns:
//   - Option: Functional option for NewPropagator
func WithMetrics(m types.ScheduleMetrics) Option {
	return func(p *Propagator) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the logger.
//
// Parameters:
//   - l: Logger implementation (nil keeps the no-op default)
//
// Returns:
//   - Option: Functional option for NewPropagator
func WithLogger(l types.Logger) Option {
	return func(p *Propagator) {
		if l != nil {
			p.logger = l
		}
	}
}

// Propagator recomputes the start and end times downstream of a mutated chain position.
//
// It never changes chain topology, only the derived time fields, and performs no
// I/O. A Propagator is bound to one model and inherits its single-writer
// discipline: the engine must not call it concurrently.
type Propagator struct {
	model    *chain.Model
	observer types.ChangeObserver
	metrics  types.ScheduleMetrics
	logger   types.Logger
}

// NewPropagator creates a propagator for the given model.
//
// Parameters:
//   - model: Chain model whose times are maintained
//   - observer: Engine notification sink (NopObserver when nil)
//   - opts: Optional configuration
//
// Returns:
//   - *Propagator: Ready to receive chain events
//
// Example:
//
//	p := schedule.NewPropagator(model, engine, schedule.WithMetrics(collector))
//	p.AfterPositionChanged(taskIdx)
func NewPropagator(model *chain.Model, observer types.ChangeObserver, opts ...Option) *Propagator {
	if observer == nil {
		observer = NopObserver{}
	}

	p := &Propagator{
		model:    model,
		observer: observer,
		metrics:  metrics.NewNop(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// AfterLinkAdded handles a task that was just inserted into a chain.
func (p *Propagator) AfterLinkAdded(t chain.TaskIndex) {
	p.Propagate(t)
}

// AfterPositionChanged handles a task whose previous TaskOrUser just changed.
func (p *Propagator) AfterPositionChanged(t chain.TaskIndex) {
	p.Propagate(t)
}

// BeforeLinkRemoved is a no-op. The engine reports the removed task's follower
// through AfterPositionChanged.
func (p *Propagator) BeforeLinkRemoved(chain.TaskIndex) {}

// AfterLinkRemoved is a no-op; see BeforeLinkRemoved.
func (p *Propagator) AfterLinkRemoved(chain.TaskIndex) {}

// Propagate rewrites start and end times from source down the chain.
//
// The walk stops at the chain tail or at the first task whose recorded start
// time already equals the newly computed one. Each write is bracketed by
// BeforeVariableChanged/AfterVariableChanged on the observer.
//
// A walk longer than the number of tasks means the chain is cyclic, which is a
// programming error: Propagate panics with ErrChainCycle.
//
// Parameters:
//   - source: Task whose position or predecessor changed
//
// Returns:
//   - int: Number of tasks whose times were rewritten
func (p *Propagator) Propagate(source chain.TaskIndex) int {
	m := p.model

	startTime := m.EndTime(m.Task(source).Previous())
	endTime := calculateEndTime(m.Task(source), startTime)

	limit := m.TaskCount()
	updated := 0
	for cur := source; cur != chain.NoTask && m.Task(cur).StartTime() != startTime; {
		if updated >= limit {
			p.logger.Error("chain cycle detected during propagation", "source", m.Task(source).ID)
			panic(fmt.Errorf("%w: propagation from task %d exceeded %d tasks", types.ErrChainCycle, m.Task(source).ID, limit))
		}

		id := m.Task(cur).ID
		p.observer.BeforeVariableChanged(id, FieldStartTime)
		m.SetStartTime(cur, startTime)
		p.observer.AfterVariableChanged(id, FieldStartTime)

		p.observer.BeforeVariableChanged(id, FieldEndTime)
		m.SetEndTime(cur, endTime)
		p.observer.AfterVariableChanged(id, FieldEndTime)
		updated++

		previousEnd := m.Task(cur).EndTime()
		cur = m.Task(cur).Next()
		startTime = previousEnd
		if cur != chain.NoTask {
			endTime = calculateEndTime(m.Task(cur), startTime)
		}
	}

	p.metrics.RecordPropagation(updated)

	return updated
}

// calculateEndTime returns startTime + duration, or 0 when either the task or
// the start time is missing.
func calculateEndTime(task *chain.Task, startTime chain.Minutes) chain.Minutes {
	if task == nil || !startTime.IsSet() {
		return chain.At(0)
	}

	return chain.At(startTime.Value() + task.Duration)
}
