// Package reader assembles a complete task snapshot from a paged task service.
//
// The service pages by rows, and a task has one row per potential owner, so a
// page boundary may split a task's owner set. The Reader never commits a task
// until it has proof that no owner rows are outstanding: either the next page
// starts with a different task, or a page grown by doubling came back short.
//
//	r := reader.New(querier, reader.WithLogger(logger))
//	res, err := r.ReadTasks(ctx, reader.ReadRequest{
//	    Statuses: []types.Status{types.StatusReady, types.StatusReserved},
//	    PageSize: 500,
//	    ReadMode: types.ReadModeDontRead,
//	})
//
// # Stream end
//
// When the service returns an empty page while a held-back task is still
// unconfirmed, the task is flushed into the result as-is. Stream end is taken
// as completeness; each such flush is logged at Warn level and counted by
// ReaderMetrics.RecordUnconfirmedFlush so deployments can spot services where
// an empty page and a truncated owner set could coincide.
package reader
