// Package types provides core type definitions and interfaces for the taskchain library.
//
// This package contains types shared by the chain model, the schedule propagator,
// the paginated reader and the synchronizer. Keeping them here avoids import
// cycles between the root taskchain package and its subpackages.
//
// Key types:
//   - TaskData, UserData: task and user records read from remote services
//   - TaskQuery, TaskQuerier: the paged remote query contract
//   - ChangeObserver: before/after field change notifications for the optimization engine
//   - State: Manager lifecycle state
//   - Logger, MetricsCollector, Hooks: ambient interfaces
package types
