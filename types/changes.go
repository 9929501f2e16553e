package types

// ChangeKind classifies how a re-read task affects the current plan.
//
// The values are ordered the way changes are applied: removals free chain
// positions before releases, owner assignments, property updates and new tasks.
type ChangeKind int

const (
	// ChangeRemove takes the task out of the plan.
	ChangeRemove ChangeKind = iota
	// ChangeRelease unassigns a task that went back to Ready.
	ChangeRelease
	// ChangeAssign pins the task to a user chosen outside the planner.
	ChangeAssign
	// ChangeProperty updates the priority and/or the status of a planned task.
	ChangeProperty
	// ChangeAdd brings a new Ready task into the plan, unassigned.
	ChangeAdd
)

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeRemove:
		return "Remove"
	case ChangeRelease:
		return "Release"
	case ChangeAssign:
		return "Assign"
	case ChangeProperty:
		return "Property"
	case ChangeAdd:
		return "Add"
	default:
		return "Unknown"
	}
}

// PlanningChange is one change the planner applies after a synchronization round.
type PlanningChange struct {
	Kind ChangeKind `json:"kind"`

	// Task is the task as read from the task service.
	Task TaskData `json:"task"`

	// User, Index and Pinned describe a ChangeAssign. Index is the position
	// published by the planner, or -1 when the assignment came from outside.
	User   string `json:"user,omitempty"`
	Index  int    `json:"index"`
	Pinned bool   `json:"pinned,omitempty"`

	// PriorityChanged and StatusChanged describe a ChangeProperty.
	PriorityChanged bool `json:"priorityChanged,omitempty"`
	StatusChanged   bool `json:"statusChanged,omitempty"`
}
