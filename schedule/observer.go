package schedule

import (
	"fmt"

	"github.com/arloliu/taskchain/types"
)

// NopObserver discards every notification.
type NopObserver struct{}

var _ types.ChangeObserver = NopObserver{}

// BeforeVariableChanged implements types.ChangeObserver.
func (NopObserver) BeforeVariableChanged(types.TaskID, string) {}

// AfterVariableChanged implements types.ChangeObserver.
func (NopObserver) AfterVariableChanged(types.TaskID, string) {}

// Notification is one observer call recorded by RecordingObserver.
type Notification struct {
	Before bool
	Entity types.TaskID
	Field  string
}

// String renders the notification as "before 7.startTime".
func (n Notification) String() string {
	phase := "after"
	if n.Before {
		phase = "before"
	}

	return fmt.Sprintf("%s %d.%s", phase, n.Entity, n.Field)
}

// RecordingObserver keeps every notification in call order.
//
// It also checks the bracketing contract: an After without a matching pending
// Before, or a second Before for a field that is still open, is recorded in
// Violations.
type RecordingObserver struct {
	Calls      []Notification
	Violations []string

	open map[Notification]bool
}

var _ types.ChangeObserver = (*RecordingObserver)(nil)

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{open: make(map[Notification]bool)}
}

// BeforeVariableChanged implements types.ChangeObserver.
func (r *RecordingObserver) BeforeVariableChanged(entity types.TaskID, field string) {
	key := Notification{Entity: entity, Field: field}
	if r.open[key] {
		r.Violations = append(r.Violations, "nested before for "+key.String())
	}
	r.open[key] = true
	r.Calls = append(r.Calls, Notification{Before: true, Entity: entity, Field: field})
}

// AfterVariableChanged implements types.ChangeObserver.
func (r *RecordingObserver) AfterVariableChanged(entity types.TaskID, field string) {
	key := Notification{Entity: entity, Field: field}
	if !r.open[key] {
		r.Violations = append(r.Violations, "unmatched after for "+key.String())
	}
	delete(r.open, key)
	r.Calls = append(r.Calls, Notification{Entity: entity, Field: field})
}

// Writes returns the (entity, field) pairs that were bracketed, in order.
func (r *RecordingObserver) Writes() []Notification {
	var out []Notification
	for _, c := range r.Calls {
		if !c.Before {
			out = append(out, c)
		}
	}

	return out
}

// Balanced reports whether every Before got its After and no violation occurred.
func (r *RecordingObserver) Balanced() bool {
	return len(r.open) == 0 && len(r.Violations) == 0
}

// Reset clears the recorded calls.
func (r *RecordingObserver) Reset() {
	r.Calls = nil
	r.Violations = nil
	r.open = make(map[Notification]bool)
}
