package source

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/taskchain/types"
)

// Static implements an in-memory task service.
//
// Tasks are stored in their grouped form and expanded into one row per
// potential owner at query time, so paging behaves like the real service: a
// page holds at most PageSize rows and may cut a task's owner set in two.
type Static struct {
	mu      sync.RWMutex
	tasks   map[types.TaskID]types.TaskData
	clock   func() time.Time
	queries []types.TaskQuery
}

var _ types.TaskQuerier = (*Static)(nil)

// StaticOption configures a Static source.
type StaticOption func(*Static)

// WithClock sets the clock that provides the query time.
func WithClock(clock func() time.Time) StaticOption {
	return func(s *Static) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStatic creates a new in-memory task service.
//
// Parameters:
//   - tasks: Initial task population (copied)
//   - opts: Optional configuration
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic(tasks)
//	r := reader.New(src)
//	res, err := r.ReadTasks(ctx, reader.ReadRequest{PageSize: 100})
func NewStatic(tasks []types.TaskData, opts ...StaticOption) *Static {
	s := &Static{
		tasks: make(map[types.TaskID]types.TaskData, len(tasks)),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range tasks {
		s.tasks[t.TaskID] = t.Clone()
	}

	return s
}

type row struct {
	task  *types.TaskData
	owner int // index into PotentialOwners, -1 for a task without owners
}

// QueryTasks executes one paged query.
//
// Rows are ordered by task id and then by owner position. Filters are applied
// before paging, and Page counts pages of PageSize rows.
//
// Returns:
//   - types.TaskQueryResult: Rows of the page grouped into tasks
//   - error: Invalid page size or read mode, or the context error
func (s *Static) QueryTasks(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
	if err := ctx.Err(); err != nil {
		return types.TaskQueryResult{}, err
	}
	if q.PageSize <= 0 || q.Page < 0 {
		return types.TaskQueryResult{}, fmt.Errorf("%w: page %d size %d", types.ErrInvalidPageSize, q.Page, q.PageSize)
	}
	if !q.ReadMode.IsValid() {
		return types.TaskQueryResult{}, fmt.Errorf("unknown read mode %q", q.ReadMode)
	}

	s.mu.Lock()
	s.queries = append(s.queries, q)
	queryTime := s.clock()
	matched := s.matchLocked(q)
	s.mu.Unlock()

	rows := make([]row, 0, len(matched))
	for i := range matched {
		t := &matched[i]
		if q.SummaryOnly || len(t.PotentialOwners) == 0 {
			rows = append(rows, row{task: t, owner: -1})
			continue
		}
		for j := range t.PotentialOwners {
			rows = append(rows, row{task: t, owner: j})
		}
	}

	offset := q.Page * q.PageSize
	if offset >= len(rows) {
		return types.TaskQueryResult{QueryTime: queryTime, Tasks: []types.TaskData{}}, nil
	}
	rows = rows[offset:min(offset+q.PageSize, len(rows))]

	return types.TaskQueryResult{QueryTime: queryTime, Tasks: group(rows, q)}, nil
}

// matchLocked returns clones of the tasks that pass the query filters, ascending by id.
func (s *Static) matchLocked(q types.TaskQuery) []types.TaskData {
	out := make([]types.TaskData, 0, len(s.tasks))
	for id, t := range s.tasks {
		if id < q.FromTaskID {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, t.Status) {
			continue
		}
		if !q.ModifiedSince.IsZero() && t.LastModificationDate.Before(q.ModifiedSince) {
			continue
		}
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b types.TaskData) int {
		return cmp.Compare(a.TaskID, b.TaskID)
	})

	return out
}

// group folds consecutive rows of the same task back into one TaskData.
func group(rows []row, q types.TaskQuery) []types.TaskData {
	var out []types.TaskData
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].TaskID != r.task.TaskID {
			t := *r.task
			t.PotentialOwners = nil
			applyReadMode(&t, q)
			out = append(out, t)
		}
		if r.owner >= 0 {
			last := &out[len(out)-1]
			last.PotentialOwners = append(last.PotentialOwners, r.task.PotentialOwners[r.owner])
		}
	}

	return out
}

func applyReadMode(t *types.TaskData, q types.TaskQuery) {
	if q.SummaryOnly {
		t.InputData = nil
		t.Labels = nil
		return
	}

	switch q.ReadMode {
	case types.ReadModeForAll:
	case types.ReadModeForActiveTasksWithNoPlanningEntity:
		if t.PlanningTask != nil || !t.Status.IsActive() {
			t.InputData = nil
		}
	default:
		t.InputData = nil
	}
}

// Update replaces the whole task population.
func (s *Static) Update(tasks []types.TaskData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[types.TaskID]types.TaskData, len(tasks))
	for _, t := range tasks {
		s.tasks[t.TaskID] = t.Clone()
	}
}

// Upsert adds or replaces the given tasks.
func (s *Static) Upsert(tasks ...types.TaskData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		s.tasks[t.TaskID] = t.Clone()
	}
}

// Remove deletes the given tasks.
func (s *Static) Remove(ids ...types.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.tasks, id)
	}
}

// Queries returns the queries executed so far, in order.
func (s *Static) Queries() []types.TaskQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.queries)
}

// ResetQueries clears the query log.
func (s *Static) ResetQueries() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = nil
}

// StaticUsers implements an in-memory user source.
type StaticUsers struct {
	mu    sync.RWMutex
	users []types.UserData
}

var _ types.UserSource = (*StaticUsers)(nil)

// NewStaticUsers creates a user source with a fixed list of users.
func NewStaticUsers(users []types.UserData) *StaticUsers {
	return &StaticUsers{users: slices.Clone(users)}
}

// ListUsers returns a copy of the users.
func (s *StaticUsers) ListUsers(_ context.Context) ([]types.UserData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.users), nil
}

// Update replaces the user list.
func (s *StaticUsers) Update(users []types.UserData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = slices.Clone(users)
}

// QuerierFunc adapts a function to types.TaskQuerier.
type QuerierFunc func(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error)

var _ types.TaskQuerier = QuerierFunc(nil)

// QueryTasks calls f.
func (f QuerierFunc) QueryTasks(ctx context.Context, q types.TaskQuery) (types.TaskQueryResult, error) {
	return f(ctx, q)
}
