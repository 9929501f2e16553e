package main

import (
	"fmt"
	"io"
	rand "math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/taskchain/chain"
	"github.com/arloliu/taskchain/changes"
	"github.com/arloliu/taskchain/schedule"
	"github.com/arloliu/taskchain/taskhelper"
	"github.com/arloliu/taskchain/types"
)

const (
	skillLabel    = "skill"
	languageLabel = "language"
)

type demoOptions struct {
	anchor int
	tasks  int
	users  int
	seed   uint64
}

func demoCmd() *cobra.Command {
	opts := &demoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Show how chain moves propagate start and end times",
		Long: `Build the chain U -> A(30) -> B(45) -> C(15), move B to the head and
print the schedule before and after. A simulated synchronization round then
reserves B for V, completes C and creates D, and the resulting planning changes
are applied. With --tasks, also plan a generated population greedily and print
every user's chain.

Examples:
  taskchain demo
  taskchain demo --anchor 480 --tasks 20 --users 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if err := runScenario(out, opts.anchor); err != nil {
				return err
			}
			if opts.tasks == 0 {
				return nil
			}
			fmt.Fprintln(out)

			return runGreedy(out, opts)
		},
	}

	cmd.Flags().IntVar(&opts.anchor, "anchor", 0, "user availability in minutes")
	cmd.Flags().IntVar(&opts.tasks, "tasks", 0, "number of generated tasks to plan greedily")
	cmd.Flags().IntVar(&opts.users, "users", 3, "number of generated users")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "seed of the generated population")

	return cmd
}

// runScenario reproduces a reassignment: B moves in front of A and the
// propagation stops at C, whose start time does not change.
func runScenario(out io.Writer, anchor int) error {
	m := chain.NewModel()
	u, err := m.AddUser(chain.User{ID: "U", Enabled: true, EndTime: chain.At(anchor)})
	if err != nil {
		return err
	}
	v, err := m.AddUser(chain.User{ID: "V", Enabled: true, EndTime: chain.At(anchor)})
	if err != nil {
		return err
	}

	observer := schedule.NewRecordingObserver()
	mover := schedule.NewMover(m, schedule.NewPropagator(m, observer), observer)

	names := map[string]chain.TaskIndex{}
	prev := chain.UserRef(u)
	for i, step := range []struct {
		name     string
		duration int
	}{{"A", 30}, {"B", 45}, {"C", 15}} {
		idx, err := m.AddTask(chain.Task{
			ID:       types.TaskID(i + 1),
			Name:     step.name,
			Status:   types.StatusReady,
			Duration: step.duration,
		})
		if err != nil {
			return err
		}
		if err := mover.Assign(idx, prev); err != nil {
			return err
		}
		names[step.name] = idx
		prev = chain.TaskRef(idx)
	}

	fmt.Fprintln(out, "initial chain:")
	printChain(out, m, u)

	observer.Reset()
	if err := mover.Move(names["B"], chain.UserRef(u)); err != nil {
		return err
	}

	fmt.Fprintln(out, "after moving B to the head:")
	printChain(out, m, u)
	fmt.Fprintf(out, "field writes: %d\n", len(observer.Writes()))
	if err := m.CheckInvariants(); err != nil {
		return err
	}

	return runSyncRound(out, m, mover, observer, u, v)
}

// runSyncRound classifies a re-read of the scenario tasks and applies the
// resulting planning changes.
func runSyncRound(out io.Writer, m *chain.Model, mover *schedule.Mover, observer *schedule.RecordingObserver, users ...chain.UserIndex) error {
	read := []types.TaskData{
		{TaskID: 2, Name: "B", Status: types.StatusReserved, ActualOwner: "V"},
		{TaskID: 3, Name: "C", Status: types.StatusCompleted},
		{TaskID: 4, Name: "D", Status: types.StatusReady},
	}

	plan := changes.NewPlan(m, mover, func(types.TaskData) int { return 20 })
	list := changes.Build(read, plan.Lookup)

	observer.Reset()
	if err := plan.Apply(list); err != nil {
		return err
	}

	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, fmt.Sprintf("%s %s", c.Kind, c.Task.Name))
	}
	fmt.Fprintln(out, "after a sync round (B reserved by V, C completed, D created):")
	fmt.Fprintf(out, "planning changes: %s\n", strings.Join(names, ", "))
	for _, u := range users {
		printChain(out, m, u)
	}

	var unassigned []string
	for i := 0; i < m.TaskCount(); i++ {
		t := m.Task(chain.TaskIndex(i))
		if _, ok := plan.Lookup(t.ID); ok && !t.IsAssigned() {
			unassigned = append(unassigned, t.Name)
		}
	}
	fmt.Fprintf(out, "unassigned: %s\n", strings.Join(unassigned, ", "))

	if !observer.Balanced() {
		return fmt.Errorf("unbalanced change notifications: %v", observer.Violations)
	}

	return m.CheckInvariants()
}

func printChain(out io.Writer, m *chain.Model, u chain.UserIndex) {
	user := m.User(u)
	parts := []string{fmt.Sprintf("%s@%s", user.ID, user.EndTime)}
	for _, idx := range m.ExtractTaskList(chain.UserRef(u)) {
		t := m.Task(idx)
		label := t.Name
		if label == "" {
			label = fmt.Sprint(t.ID)
		}
		parts = append(parts, fmt.Sprintf("%s[%s-%s]", label, t.StartTime(), t.EndTime()))
	}
	fmt.Fprintf(out, "  %s\n", strings.Join(parts, " -> "))
}

// runGreedy plans a generated population by appending every task to the
// chain of the eligible owner that becomes available first.
func runGreedy(out io.Writer, opts *demoOptions) error {
	tasks, users := generatePopulation(opts.seed, opts.tasks, opts.users)
	users = append(users, types.UserData{ID: taskhelper.PlanningUserID, Enabled: true})

	m, err := chain.FromSnapshot(tasks, users, func(t types.TaskData) int {
		return 10 + 5*t.Priority
	})
	if err != nil {
		return err
	}
	for i := 0; i < m.UserCount(); i++ {
		m.User(chain.UserIndex(i)).EndTime = chain.At(opts.anchor)
	}

	observer := schedule.NewRecordingObserver()
	mover := schedule.NewMover(m, schedule.NewPropagator(m, observer), observer)
	planningUser, _ := m.UserByID(taskhelper.PlanningUserID)

	parked := 0
	for i := 0; i < m.TaskCount(); i++ {
		t := chain.TaskIndex(i)
		u, ok := pickOwner(m, t, planningUser)
		if !ok {
			u = planningUser
			parked++
		}

		if err := mover.Assign(t, tail(m, u)); err != nil {
			return err
		}
		if !taskhelper.AcceptsAssignedUser(m, t) {
			return fmt.Errorf("task %d assigned to a user that cannot own it", m.Task(t).ID)
		}
	}

	fmt.Fprintf(out, "greedy plan of %d tasks (%d parked on %s):\n", m.TaskCount(), parked, taskhelper.PlanningUserID)
	for i := 0; i < m.UserCount(); i++ {
		printChain(out, m, chain.UserIndex(i))
	}
	fmt.Fprintf(out, "field writes: %d\n", len(observer.Writes()))
	if !observer.Balanced() {
		return fmt.Errorf("unbalanced change notifications: %v", observer.Violations)
	}

	return m.CheckInvariants()
}

// pickOwner returns the eligible owner with all required skills, preferring
// matching languages and then the earliest availability.
func pickOwner(m *chain.Model, t chain.TaskIndex, skip chain.UserIndex) (chain.UserIndex, bool) {
	task := m.Task(t)

	best := chain.NoUser
	bestMatch, bestEnd := -1, 0
	for i := 0; i < m.UserCount(); i++ {
		u := chain.UserIndex(i)
		user := m.User(u)
		if u == skip || !taskhelper.IsEligible(user) || !taskhelper.IsPotentialOwner(task, user) {
			continue
		}
		if !taskhelper.HasAllLabels(task, user, skillLabel) {
			continue
		}

		match := taskhelper.MatchingLabelCount(task, user, languageLabel)
		end := m.EndTime(tail(m, u)).Value()
		if match > bestMatch || (match == bestMatch && end < bestEnd) {
			best, bestMatch, bestEnd = u, match, end
		}
	}

	return best, best != chain.NoUser
}

func tail(m *chain.Model, u chain.UserIndex) chain.Ref {
	list := m.ExtractTaskList(chain.UserRef(u))
	if len(list) == 0 {
		return chain.UserRef(u)
	}

	return chain.TaskRef(list[len(list)-1])
}

// generatePopulation builds users in two groups and tasks owned by users or groups.
func generatePopulation(seed uint64, taskCount, userCount int) ([]types.TaskData, []types.UserData) {
	rng := rand.New(rand.NewPCG(seed, seed+1)) //nolint:gosec // demo data
	skills := []string{"billing", "claims", "fraud"}
	languages := []string{"en", "es", "fr"}

	userCount = max(userCount, 1)
	users := make([]types.UserData, 0, userCount)
	for i := 0; i < userCount; i++ {
		users = append(users, types.UserData{
			ID:      fmt.Sprintf("user-%d", i),
			Enabled: i%5 != 4,
			Groups:  []string{fmt.Sprintf("group-%d", i%2)},
			Labels: types.Labels{
				skillLabel:    {skills[i%len(skills)], skills[(i+1)%len(skills)]},
				languageLabel: {languages[rng.IntN(len(languages))]},
			},
		})
	}

	tasks := make([]types.TaskData, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		var owner types.OrganizationalEntity
		if rng.IntN(2) == 0 {
			owner = types.NewGroupEntity(fmt.Sprintf("group-%d", rng.IntN(2)))
		} else {
			owner = types.NewUserEntity(fmt.Sprintf("user-%d", rng.IntN(userCount)))
		}

		tasks = append(tasks, types.TaskData{
			TaskID:          types.TaskID(100 + i),
			Status:          types.StatusReady,
			Priority:        rng.IntN(4),
			PotentialOwners: []types.OrganizationalEntity{owner},
			Labels: types.Labels{
				skillLabel:    {skills[rng.IntN(len(skills))]},
				languageLabel: {languages[rng.IntN(len(languages))]},
			},
		})
	}

	return tasks, users
}
