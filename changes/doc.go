// Package changes turns the tasks re-read by a synchronization round into
// planning changes and applies them to a chain model.
//
// Build classifies every re-read task against what the planner currently
// knows about it:
//   - a new Ready task is added, unassigned
//   - a new Reserved, InProgress or Suspended task with an actual owner is
//     assigned to that owner and pinned
//   - a planned task that went back to Ready is released
//   - a planned task whose actual owner differs from its planned user is
//     reassigned to the actual owner and pinned
//   - a planned task owned by its planned user that was published but is not
//     pinned yet gets pinned at its published index
//   - a planned task without an actual owner in an owned status, or in a
//     terminal status, is removed
//   - a priority or status difference on a task that stays is a property change
//
// Plan applies the changes to a chain.Model through a schedule.Mover, so every
// link update raises the engine notifications and start/end times stay
// propagated. Pinned tasks form the head of each user's chain.
package changes
