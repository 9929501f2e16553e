package types

import (
	"context"
	"time"
)

// ReadMode controls whether the task service attaches task input data to the returned tasks.
type ReadMode string

const (
	// ReadModeDontRead never loads input data.
	ReadModeDontRead ReadMode = "DONT_READ"

	// ReadModeForAll loads input data for every returned task.
	ReadModeForAll ReadMode = "READ_FOR_ALL"

	// ReadModeForActiveTasksWithNoPlanningEntity loads input data only for active tasks
	// that have not been planned yet.
	ReadModeForActiveTasksWithNoPlanningEntity ReadMode = "READ_FOR_ACTIVE_TASKS_WITH_NO_PLANNING_ENTITY"
)

// IsValid reports whether the read mode is a known value. The empty mode is treated as DontRead.
func (m ReadMode) IsValid() bool {
	switch m {
	case "", ReadModeDontRead, ReadModeForAll, ReadModeForActiveTasksWithNoPlanningEntity:
		return true
	default:
		return false
	}
}

// TaskQuery is a single paged query against the task service.
//
// Paging is row based: a task with N potential owners occupies N rows (a task
// without owners occupies one row), ordered by task id and then owner.
type TaskQuery struct {
	// FromTaskID restricts the result to tasks with id >= FromTaskID.
	FromTaskID TaskID `json:"fromTaskId"`

	// Statuses restricts the result to the given statuses (empty = any).
	Statuses []Status `json:"statuses,omitempty"`

	// ModifiedSince restricts the result to tasks modified at or after this instant (zero = any).
	ModifiedSince time.Time `json:"modifiedSince"`

	// Page is the zero based page offset, expressed in pages of PageSize rows.
	Page int `json:"page"`

	// PageSize is the maximum number of rows returned.
	PageSize int `json:"pageSize"`

	// ReadMode selects input data loading.
	ReadMode ReadMode `json:"readMode,omitempty"`

	// SummaryOnly returns one row per task without potential owners.
	SummaryOnly bool `json:"summaryOnly,omitempty"`
}

// TaskQueryResult is the answer to a TaskQuery.
type TaskQueryResult struct {
	// QueryTime is the service-side instant at which the query was executed.
	QueryTime time.Time `json:"queryTime"`

	// Tasks holds the returned rows grouped into logical tasks, ascending by id.
	Tasks []TaskData `json:"tasks"`
}

// TaskQuerier executes paged task queries against the remote task service.
//
// Implementations perform blocking I/O and should honour ctx cancellation.
// Transport and service failures are returned as-is; callers own retry policy.
type TaskQuerier interface {
	// QueryTasks executes a single paged query.
	QueryTasks(ctx context.Context, query TaskQuery) (TaskQueryResult, error)
}

// UserSource lists the users of the external user system.
type UserSource interface {
	// ListUsers returns all known users.
	ListUsers(ctx context.Context) ([]UserData, error)
}
