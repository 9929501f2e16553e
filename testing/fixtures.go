package testing

import (
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/arloliu/taskchain/types"
)

// GenerateTasks builds a reproducible task population for tests and demos.
//
// Task ids start at 1 and increase by a random step of 1 to 3, so the
// population has gaps like a real task service. Each task gets between 1 and
// maxOwners potential owners, mixing users and groups.
//
// Parameters:
//   - seed: PCG seed
//   - count: Number of tasks
//   - maxOwners: Upper bound of potential owners per task (at least 1)
//
// Returns:
//   - []types.TaskData: Tasks sorted by id
func GenerateTasks(seed uint64, count, maxOwners int) []types.TaskData {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)) //nolint:gosec // test data
	maxOwners = max(maxOwners, 1)

	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	statuses := []types.Status{types.StatusReady, types.StatusReserved, types.StatusInProgress}

	tasks := make([]types.TaskData, 0, count)
	id := types.TaskID(0)
	for i := 0; i < count; i++ {
		id += types.TaskID(1 + rng.IntN(3))

		owners := make([]types.OrganizationalEntity, 1+rng.IntN(maxOwners))
		for j := range owners {
			if j%4 == 3 {
				owners[j] = types.NewGroupEntity(fmt.Sprintf("group-%d", j))
			} else {
				owners[j] = types.NewUserEntity(fmt.Sprintf("user-%d", j))
			}
		}

		tasks = append(tasks, types.TaskData{
			TaskID:               id,
			Name:                 fmt.Sprintf("task-%d", id),
			Status:               statuses[rng.IntN(len(statuses))],
			Priority:             rng.IntN(10),
			ContainerID:          "demo-container",
			ProcessID:            "demo.process",
			ProcessInstanceID:    int64(1000 + i),
			LastModificationDate: base.Add(time.Duration(i) * time.Minute),
			PotentialOwners:      owners,
			InputData:            map[string]any{"index": i},
		})
	}

	return tasks
}
