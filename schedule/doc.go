// Package schedule keeps the derived start and end times of task chains
// consistent while an optimization engine rearranges them.
//
// The Propagator reacts to chain mutation events. Starting at the moved task it
// walks the chain suffix and rewrites start/end times until it reaches the tail
// or a task whose start time is already correct. Every write is bracketed by
// ChangeObserver notifications so the engine's incremental bookkeeping stays in
// sync.
//
// Mover is a small engine adapter that applies link changes to a chain.Model,
// raises the engine-side notifications, and fires the propagator events in the
// order an engine would.
package schedule
