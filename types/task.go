package types

import (
	"slices"
	"time"
)

// TaskID identifies a task in the remote task service.
//
// Task ids are ordered: the paginated reader walks the task population in ascending id order.
type TaskID int64

// Status is the lifecycle status of a human task as reported by the remote service.
type Status string

// Task statuses understood by the task service.
const (
	StatusCreated    Status = "Created"
	StatusReady      Status = "Ready"
	StatusReserved   Status = "Reserved"
	StatusInProgress Status = "InProgress"
	StatusSuspended  Status = "Suspended"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusError      Status = "Error"
	StatusExited     Status = "Exited"
	StatusObsolete   Status = "Obsolete"
)

// IsActive reports whether a task in this status still needs an owner.
func (s Status) IsActive() bool {
	switch s {
	case StatusCreated, StatusReady, StatusReserved, StatusInProgress, StatusSuspended:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the task reached a final status and leaves the planning population.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError, StatusExited, StatusObsolete:
		return true
	default:
		return false
	}
}

// IsOwned reports whether a task in this status is normally held by an actual owner.
func (s Status) IsOwned() bool {
	switch s {
	case StatusReserved, StatusInProgress, StatusSuspended:
		return true
	default:
		return false
	}
}

// EntityKind discriminates the organizational entity variants.
type EntityKind int

const (
	// EntityUser is a single user.
	EntityUser EntityKind = iota
	// EntityGroup is a group of users.
	EntityGroup
)

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	switch k {
	case EntityUser:
		return "User"
	case EntityGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// OrganizationalEntity is a user or a group that may own a task.
type OrganizationalEntity struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// IsUser reports whether the entity is a user.
func (e OrganizationalEntity) IsUser() bool {
	return e.Kind == EntityUser
}

// NewUserEntity returns a user entity.
func NewUserEntity(id string) OrganizationalEntity {
	return OrganizationalEntity{ID: id, Kind: EntityUser}
}

// NewGroupEntity returns a group entity.
func NewGroupEntity(id string) OrganizationalEntity {
	return OrganizationalEntity{ID: id, Kind: EntityGroup}
}

// Labels maps a typed label name to its values.
type Labels map[string][]string

// Values returns the values for the given label name (nil when absent).
func (l Labels) Values(name string) []string {
	if l == nil {
		return nil
	}

	return l[name]
}

// Clone returns a deep copy of the labels.
func (l Labels) Clone() Labels {
	if l == nil {
		return nil
	}

	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = slices.Clone(v)
	}

	return out
}

// PlanningTask carries the planning data previously published for a task.
type PlanningTask struct {
	TaskID       TaskID `json:"taskId"`
	AssignedUser string `json:"assignedUser"`
	Index        int    `json:"index"`
	Published    bool   `json:"published"`
}

// TaskData is one logical task returned by the remote task service.
//
// A task is stored remotely as one row per potential owner; TaskData is the
// grouped form with the owner set assembled.
type TaskData struct {
	TaskID               TaskID                 `json:"taskId"`
	Name                 string                 `json:"name"`
	Status               Status                 `json:"status"`
	Priority             int                    `json:"priority"`
	ContainerID          string                 `json:"containerId,omitempty"`
	ProcessID            string                 `json:"processId,omitempty"`
	ProcessInstanceID    int64                  `json:"processInstanceId,omitempty"`
	ActualOwner          string                 `json:"actualOwner,omitempty"`
	LastModificationDate time.Time              `json:"lastModificationDate"`
	PotentialOwners      []OrganizationalEntity `json:"potentialOwners,omitempty"`
	Labels               Labels                 `json:"labels,omitempty"`
	InputData            map[string]any         `json:"inputData,omitempty"`
	PlanningTask         *PlanningTask          `json:"planningTask,omitempty"`
}

// Clone returns a copy of the task that shares no slices or maps with the receiver.
func (t TaskData) Clone() TaskData {
	out := t
	out.PotentialOwners = slices.Clone(t.PotentialOwners)
	out.Labels = t.Labels.Clone()
	if t.InputData != nil {
		out.InputData = make(map[string]any, len(t.InputData))
		for k, v := range t.InputData {
			out.InputData[k] = v
		}
	}
	if t.PlanningTask != nil {
		pt := *t.PlanningTask
		out.PlanningTask = &pt
	}

	return out
}

// UserData is a user as known by the external user system.
type UserData struct {
	ID      string   `json:"id"`
	Enabled bool     `json:"enabled"`
	Groups  []string `json:"groups,omitempty"`
	Labels  Labels   `json:"labels,omitempty"`
}
