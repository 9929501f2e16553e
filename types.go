package taskchain

import "github.com/arloliu/taskchain/types"

// Re-export types from the types package.
//
// The types subpackage holds the definitions so internal packages can depend
// on them without importing the root package. The aliases give callers the
// shorter taskchain.TaskData, taskchain.Logger and so on.
type (
	State                = types.State
	Status               = types.Status
	TaskID               = types.TaskID
	TaskData             = types.TaskData
	UserData             = types.UserData
	Labels               = types.Labels
	PlanningTask         = types.PlanningTask
	OrganizationalEntity = types.OrganizationalEntity
	ReadMode             = types.ReadMode
	TaskQuery            = types.TaskQuery
	TaskQueryResult      = types.TaskQueryResult
	ChangeKind           = types.ChangeKind
	PlanningChange       = types.PlanningChange
)

// Re-export interfaces from the types package for convenience.
type (
	TaskQuerier      = types.TaskQuerier
	UserSource       = types.UserSource
	ChangeObserver   = types.ChangeObserver
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export State constants from the types package.
const (
	StateInit          = types.StateInit
	StateLoading       = types.StateLoading
	StateSynchronizing = types.StateSynchronizing
	StateDegraded      = types.StateDegraded
	StateShutdown      = types.StateShutdown
)

// Re-export Status constants from the types package.
const (
	StatusCreated    = types.StatusCreated
	StatusReady      = types.StatusReady
	StatusReserved   = types.StatusReserved
	StatusInProgress = types.StatusInProgress
	StatusSuspended  = types.StatusSuspended
	StatusCompleted  = types.StatusCompleted
	StatusFailed     = types.StatusFailed
	StatusError      = types.StatusError
	StatusExited     = types.StatusExited
	StatusObsolete   = types.StatusObsolete
)

// Re-export ChangeKind constants from the types package.
const (
	ChangeRemove   = types.ChangeRemove
	ChangeRelease  = types.ChangeRelease
	ChangeAssign   = types.ChangeAssign
	ChangeProperty = types.ChangeProperty
	ChangeAdd      = types.ChangeAdd
)
