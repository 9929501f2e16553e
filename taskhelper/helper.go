// Package taskhelper provides the pure ownership and label queries used by
// assignment constraints.
//
// Nil tasks, users, owner sets and label sets are treated as empty; none of the
// functions mutate their arguments.
package taskhelper

import (
	"slices"

	"github.com/arloliu/taskchain/chain"
)

// PlanningUserID is the id of the reserved planning user. Tasks that cannot be
// given to anyone else are parked on it, so it belongs to every group.
const PlanningUserID = "planninguser"

// IsPotentialOwner reports whether user may own task.
//
// The user qualifies when it is listed directly among the task's potential
// owners, or when one of its groups is listed as a group owner.
//
// Example:
//
//	task.PotentialOwners = []types.OrganizationalEntity{types.NewGroupEntity("HR")}
//	user.Groups = []string{"HR", "IT"}
//	taskhelper.IsPotentialOwner(task, user) // true
func IsPotentialOwner(task *chain.Task, user *chain.User) bool {
	if task == nil || user == nil {
		return false
	}

	for _, owner := range task.PotentialOwners {
		if owner.IsUser() {
			if owner.ID == user.ID {
				return true
			}
			continue
		}
		if slices.Contains(user.Groups, owner.ID) {
			return true
		}
	}

	return false
}

// HasAllLabels reports whether the user carries every value of the task's label.
//
// A task without values for the label accepts any user.
func HasAllLabels(task *chain.Task, user *chain.User, labelName string) bool {
	if task == nil {
		return true
	}

	required := task.Labels.Values(labelName)
	if len(required) == 0 {
		return true
	}
	if user == nil {
		return false
	}

	available := user.Labels.Values(labelName)
	for _, v := range required {
		if !slices.Contains(available, v) {
			return false
		}
	}

	return true
}

// MatchingLabelCount returns how many distinct values of the label the task and
// the user have in common.
func MatchingLabelCount(task *chain.Task, user *chain.User, labelName string) int {
	if task == nil || user == nil {
		return 0
	}

	taskValues := task.Labels.Values(labelName)
	userValues := user.Labels.Values(labelName)
	if len(taskValues) == 0 || len(userValues) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(taskValues))
	count := 0
	for _, v := range taskValues {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if slices.Contains(userValues, v) {
			count++
		}
	}

	return count
}

// IsEligible reports whether the user can receive new assignments.
func IsEligible(user *chain.User) bool {
	return user != nil && user.Enabled
}

// AcceptsAssignedUser reports whether the task's current chain anchor may own it.
//
// The planning user accepts every task. An unassigned task accepts nobody.
//
// Parameters:
//   - m: Model holding the task
//   - t: Task to check
//
// Returns:
//   - bool: true if the assignment is allowed
func AcceptsAssignedUser(m *chain.Model, t chain.TaskIndex) bool {
	task := m.Task(t)
	u := task.AssignedUser()
	if u == chain.NoUser {
		return false
	}

	user := m.User(u)
	if user.ID == PlanningUserID {
		return true
	}

	return IsPotentialOwner(task, user)
}
