package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/internal/metrics"
	"github.com/arloliu/taskchain/types"
)

// ReadRequest describes one complete read.
type ReadRequest struct {
	// FromTaskID is the first task id of interest (inclusive).
	FromTaskID types.TaskID

	// Statuses restricts the read to the given statuses (empty = any).
	Statuses []types.Status

	// ModifiedSince restricts the read to tasks modified at or after this instant (zero = any).
	ModifiedSince time.Time

	// PageSize is the initial number of rows requested per page. Must be positive.
	PageSize int

	// ReadMode selects input data loading.
	ReadMode types.ReadMode
}

// Result is the outcome of a complete read.
type Result struct {
	// QueryTime is the service time reported by the first page.
	QueryTime time.Time

	// Tasks holds every task exactly once, ascending by id, with its full owner set.
	Tasks []types.TaskData
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m types.ReaderMetrics) Option {
	return func(r *Reader) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Reader reads complete task snapshots through a TaskQuerier.
//
// A Reader keeps no state between calls and may be shared, but each call
// issues its page queries sequentially.
type Reader struct {
	querier types.TaskQuerier
	logger  types.Logger
	metrics types.ReaderMetrics
}

// New creates a Reader.
//
// Parameters:
//   - querier: Remote task service
//   - opts: Optional logger and metrics
//
// Returns:
//   - *Reader: Ready to read
func New(querier types.TaskQuerier, opts ...Option) *Reader {
	r := &Reader{
		querier: querier,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ReadTasks reads every task matching req, each with its complete potential owner set.
//
// The call fails atomically: on any error no partial result is returned.
//
// Parameters:
//   - ctx: Checked between page fetches and passed to the querier
//   - req: Filters and the initial page size
//
// Returns:
//   - Result: Query time of the first page and the de-duplicated tasks
//   - error: ErrInvalidPageSize, a context error, or ErrRemoteQuery wrapping the querier failure
func (r *Reader) ReadTasks(ctx context.Context, req ReadRequest) (Result, error) {
	if req.PageSize <= 0 {
		return Result{}, fmt.Errorf("%w: %d", types.ErrInvalidPageSize, req.PageSize)
	}

	var (
		result       []types.TaskData
		queryTime    time.Time
		lastItem     *types.TaskData
		taskID       = req.FromTaskID
		nextPageSize = req.PageSize
		first        = true
	)

	for finished := false; !finished; {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("read tasks at cursor %d: %w", taskID, err)
		}

		page, err := r.query(ctx, types.TaskQuery{
			FromTaskID:    taskID,
			Statuses:      req.Statuses,
			ModifiedSince: req.ModifiedSince,
			PageSize:      nextPageSize,
			ReadMode:      req.ReadMode,
		})
		if err != nil {
			return Result{}, err
		}
		if first {
			queryTime = page.QueryTime
			first = false
		}

		tasks := page.Tasks
		switch {
		case len(tasks) == 0:
			finished = true
			if lastItem != nil {
				r.logger.Warn("flushing unconfirmed trailing task at stream end",
					"taskId", lastItem.TaskID, "owners", len(lastItem.PotentialOwners))
				r.metrics.RecordUnconfirmedFlush()
				result = append(result, *lastItem)
			}

		case lastItem == nil || len(tasks) > 1:
			held := tasks[len(tasks)-1]
			result = append(result, tasks[:len(tasks)-1]...)
			lastItem = &held
			taskID = held.TaskID
			nextPageSize = req.PageSize

		case tasks[0].TaskID == lastItem.TaskID:
			if rowCount(tasks[0]) < nextPageSize {
				result = append(result, tasks[0])
				lastItem = nil
				finished = true
			} else {
				nextPageSize *= 2
				r.metrics.RecordPageSizeGrowth(nextPageSize)
				r.logger.Debug("owner rows fill the page, doubling page size",
					"taskId", taskID, "pageSize", nextPageSize)
			}

		default:
			held := tasks[0]
			lastItem = &held
			taskID = held.TaskID
			nextPageSize = req.PageSize
		}
	}

	r.metrics.RecordTasksRead(len(result))
	r.logger.Debug("task read finished", "tasks", len(result), "fromTaskId", req.FromTaskID)

	return Result{QueryTime: queryTime, Tasks: result}, nil
}

// ReadSummaries reads one summary row per task, without potential owners or input data.
//
// Summaries have no owner fan-out, so the cursor simply moves past the last
// task of each page until an empty page is returned.
//
// Parameters:
//   - ctx: Checked between page fetches and passed to the querier
//   - fromTaskID: First task id of interest (inclusive)
//   - statuses: Status filter (empty = any)
//   - pageSize: Rows per page, must be positive
//
// Returns:
//   - []types.TaskData: Task summaries ascending by id
//   - error: ErrInvalidPageSize, a context error, or ErrRemoteQuery wrapping the querier failure
func (r *Reader) ReadSummaries(ctx context.Context, fromTaskID types.TaskID, statuses []types.Status, pageSize int) ([]types.TaskData, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidPageSize, pageSize)
	}

	var result []types.TaskData
	taskID := fromTaskID
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read summaries at cursor %d: %w", taskID, err)
		}

		page, err := r.query(ctx, types.TaskQuery{
			FromTaskID:  taskID,
			Statuses:    statuses,
			PageSize:    pageSize,
			SummaryOnly: true,
		})
		if err != nil {
			return nil, err
		}
		if len(page.Tasks) == 0 {
			break
		}

		result = append(result, page.Tasks...)
		taskID = page.Tasks[len(page.Tasks)-1].TaskID + 1
	}

	r.metrics.RecordTasksRead(len(result))

	return result, nil
}

// rowCount is the number of service rows a task occupies: one per potential
// owner, and a single row for a task without owners.
func rowCount(t types.TaskData) int {
	return max(len(t.PotentialOwners), 1)
}

func (r *Reader) query(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
	start := time.Now()
	page, err := r.querier.QueryTasks(ctx, q)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		r.metrics.RecordPageQuery(elapsed, 0, false)
		r.logger.Error("task page query failed", "fromTaskId", q.FromTaskID, "pageSize", q.PageSize, "error", err)

		return types.TaskQueryResult{}, fmt.Errorf("%w: page at task %d: %w", types.ErrRemoteQuery, q.FromTaskID, err)
	}

	r.metrics.RecordPageQuery(elapsed, len(page.Tasks), true)
	r.logger.Debug("task page fetched", "fromTaskId", q.FromTaskID, "pageSize", q.PageSize, "tasks", len(page.Tasks))

	return page, nil
}
