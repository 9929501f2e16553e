package taskchain

import "github.com/arloliu/taskchain/types"

// Sentinel errors re-exported from the types package.
//
// They are the same values, so errors.Is works with either name.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrQuerierRequired is returned when the task querier is nil.
	ErrQuerierRequired = types.ErrQuerierRequired

	// ErrAlreadyStarted is returned when Start is called on an already running manager.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when Stop is called on a manager that hasn't been started.
	ErrNotStarted = types.ErrNotStarted

	// ErrRemoteQuery is returned when a call to the remote task service fails.
	ErrRemoteQuery = types.ErrRemoteQuery

	// ErrInvalidPageSize is returned when a non-positive page size is requested.
	ErrInvalidPageSize = types.ErrInvalidPageSize

	// ErrConnectivity indicates a NATS connectivity issue.
	ErrConnectivity = types.ErrConnectivity

	// ErrPublishFailed is returned when publishing a snapshot to NATS KV fails.
	ErrPublishFailed = types.ErrPublishFailed

	// ErrUnknownTask is returned when a task is not part of the snapshot.
	ErrUnknownTask = types.ErrUnknownTask
)
