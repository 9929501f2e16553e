// Package source provides task service adapters.
//
// The package includes:
//
//   - Static: In-memory task service with row-based paging, for tests and demos
//   - StaticUsers: In-memory user source
//   - NATSQuerier / NATSUsers: Clients of a task service exposed over NATS request/reply
//   - Responder: Serves any TaskQuerier and UserSource over NATS request/reply
//   - QuerierFunc: Adapter turning a function into a TaskQuerier
//
// Custom services can be plugged in by satisfying types.TaskQuerier.
package source
