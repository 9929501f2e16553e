package types

import "errors"

// Sentinel errors for the taskchain library.
//
// Components return these for known conditions and wrap external errors with
// context using fmt.Errorf("%w: ...", Err..., cause) so callers can use errors.Is.

// Reader errors.
var (
	// ErrRemoteQuery is returned when a call to the remote task service fails.
	// The underlying cause is preserved in the error chain.
	ErrRemoteQuery = errors.New("remote query failed")

	// ErrInvalidPageSize is returned when a non-positive page size is requested.
	ErrInvalidPageSize = errors.New("page size must be positive")
)

// Chain model errors.
var (
	// ErrChainCycle marks a chain whose next pointers never reach the tail.
	// It is a programming invariant violation and is raised with panic.
	ErrChainCycle = errors.New("chain cycle detected")

	// ErrUnknownTask is returned when a task index or id is not part of the model.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidLink is returned when a link operation would break chain invariants.
	ErrInvalidLink = errors.New("invalid chain link")

	// ErrDuplicateID is returned when a task or user id is added to a model twice.
	ErrDuplicateID = errors.New("duplicate id")
)

// Manager errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrQuerierRequired is returned when no task querier is supplied.
	ErrQuerierRequired = errors.New("task querier is required")

	// ErrAlreadyStarted is returned when Start is called on an already running manager.
	ErrAlreadyStarted = errors.New("manager already started")

	// ErrNotStarted is returned when operations require a started manager.
	ErrNotStarted = errors.New("manager not started")

	// ErrConnectivity indicates a NATS connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")
)

// Snapshot store errors.
var (
	// ErrPublishFailed is returned when publishing a snapshot to NATS KV fails.
	ErrPublishFailed = errors.New("failed to publish snapshot")

	// ErrSnapshotNotFound is returned when no snapshot has been published yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
