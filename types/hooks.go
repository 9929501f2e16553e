package types

import (
	"context"
	"time"
)

// Hooks defines callbacks for Manager lifecycle events.
//
// All hooks are optional. They run on the manager's goroutines and receive the
// manager's lifecycle context, which is cancelled during shutdown. Hook errors
// are logged but never fail a synchronization cycle.
//
// Keep hooks short: a slow OnTasksChanged delays the next synchronization cycle.
type Hooks struct {
	// OnSnapshot is called after the initial full read with the complete task and user population.
	OnSnapshot func(ctx context.Context, tasks []TaskData, users []UserData, queryTime time.Time) error

	// OnTasksChanged is called after an incremental read produced changes.
	// changed holds new or modified tasks, removed the ids of tasks that left the population.
	OnTasksChanged func(ctx context.Context, changed []TaskData, removed []TaskID) error

	// OnPlanningChanges is called after an incremental read, before OnTasksChanged,
	// with the re-read tasks classified into planning changes in application order.
	// It is not called when the read produced no planning change.
	OnPlanningChanges func(ctx context.Context, changes []PlanningChange) error

	// OnStateChanged is called when the manager state transitions.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
