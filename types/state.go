package types

// State represents the synchronizer lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	StateInit → StateLoading → StateSynchronizing
//
// A failed synchronization cycle moves the manager to StateDegraded until the
// next successful cycle brings it back to StateSynchronizing:
//
//	StateSynchronizing → StateDegraded → StateSynchronizing
//
// Shutdown is terminal.
type State int

const (
	// StateInit is the initial state before any operations.
	StateInit State = iota

	// StateLoading indicates the initial full snapshot is being read.
	StateLoading

	// StateSynchronizing indicates normal operation with periodic incremental reads.
	StateSynchronizing

	// StateDegraded indicates the last synchronization cycle failed and the
	// snapshot may be stale.
	StateDegraded

	// StateShutdown indicates graceful shutdown is in progress.
	StateShutdown
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateLoading:
		return "Loading"
	case StateSynchronizing:
		return "Synchronizing"
	case StateDegraded:
		return "Degraded"
	case StateShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}
