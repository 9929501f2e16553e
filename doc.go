// Package taskchain keeps a planning engine's view of a remote human-task
// service in sync and provides the chain model it plans on.
//
// Tasks are stored remotely as one row per potential owner. The reader
// package pages through them without splitting a task across pages, the
// Manager in this package turns those reads into a live snapshot, and the
// chain and schedule packages model assignments as per-user chains whose
// start and end times are recomputed incrementally.
//
// # Quick Start
//
// Synchronize the active tasks of a task service reachable over NATS:
//
//	import (
//	    "github.com/arloliu/taskchain"
//	    "github.com/arloliu/taskchain/source"
//	)
//
//	cfg := taskchain.DefaultConfig()
//	querier := source.NewNATSQuerier(nc, cfg.QuerySubject, 0)
//
//	mgr, err := taskchain.NewManager(&cfg, querier)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop(context.Background())
//
//	snap := mgr.Snapshot()
//
// # Architecture
//
// The manager progresses through a small state machine:
//
//	INIT → LOADING → SYNCHRONIZING ⇄ DEGRADED
//
// LOADING performs the initial full read. SYNCHRONIZING reads the tasks
// modified since the previous read every SyncInterval and refreshes users every
// UsersSyncInterval. A failed cycle moves the manager to DEGRADED, where it
// keeps serving the last snapshot and retries with a jittered backoff.
//
// # Snapshots and Hooks
//
// With WithJetStream the manager publishes every changed snapshot to a KV
// bucket under a monotonic version. Hooks report the initial snapshot, each
// batch of changed and removed tasks, state transitions and errors.
// OnPlanningChanges receives the same batch classified into planning changes
// (remove, release, assign, property, add), ready for changes.Plan or an
// optimizer's own problem-change API:
//
//	hooks := &taskchain.Hooks{
//	    OnPlanningChanges: func(ctx context.Context, list []taskchain.PlanningChange) error {
//	        return solver.ApplyPlanningChanges(list)
//	    },
//	}
//
//	mgr, err := taskchain.NewManager(&cfg, querier,
//	    taskchain.WithJetStream(js),
//	    taskchain.WithHooks(hooks),
//	)
//
// See cmd/taskchain and the examples/ directory for complete programs.
package taskchain
