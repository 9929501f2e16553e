package hooks

import (
	"context"
	"time"

	"github.com/arloliu/taskchain/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// The manager fills every missing callback from NopHooks so it never has to
// nil-check a hook before calling it.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, []types.TaskData, []types.UserData, time.Time) error = (*NopHooks)(nil).OnSnapshot
	_ func(context.Context, []types.TaskData, []types.TaskID) error             = (*NopHooks)(nil).OnTasksChanged
	_ func(context.Context, []types.PlanningChange) error                       = (*NopHooks)(nil).OnPlanningChanges
	_ func(context.Context, types.State, types.State) error                     = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, error) error                                        = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnSnapshot:        h.OnSnapshot,
		OnTasksChanged:    h.OnTasksChanged,
		OnPlanningChanges: h.OnPlanningChanges,
		OnStateChanged:    h.OnStateChanged,
		OnError:           h.OnError,
	}
}

// Fill returns a copy of hooks where every nil callback is replaced by its no-op.
//
// Parameters:
//   - hooks: Caller supplied hooks (may be nil)
//
// Returns:
//   - types.Hooks: Hooks safe to call without nil checks
func Fill(hooks *types.Hooks) types.Hooks {
	out := NewNop()
	if hooks == nil {
		return out
	}

	if hooks.OnSnapshot != nil {
		out.OnSnapshot = hooks.OnSnapshot
	}
	if hooks.OnTasksChanged != nil {
		out.OnTasksChanged = hooks.OnTasksChanged
	}
	if hooks.OnPlanningChanges != nil {
		out.OnPlanningChanges = hooks.OnPlanningChanges
	}
	if hooks.OnStateChanged != nil {
		out.OnStateChanged = hooks.OnStateChanged
	}
	if hooks.OnError != nil {
		out.OnError = hooks.OnError
	}

	return out
}

// OnSnapshot is a no-op implementation.
func (h *NopHooks) OnSnapshot(_ context.Context, _ []types.TaskData, _ []types.UserData, _ time.Time) error {
	return nil
}

// OnTasksChanged is a no-op implementation.
func (h *NopHooks) OnTasksChanged(_ context.Context, _ []types.TaskData, _ []types.TaskID) error {
	return nil
}

// OnPlanningChanges is a no-op implementation.
func (h *NopHooks) OnPlanningChanges(_ context.Context, _ []types.PlanningChange) error {
	return nil
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.State) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
