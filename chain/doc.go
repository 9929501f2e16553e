// Package chain implements the task chain model used for task assignment.
//
// A chain starts at a User (the anchor) and continues through Tasks, each
// pointing at the TaskOrUser right before it. The optimization engine mutates
// the chains; derived start and end times are maintained by package schedule.
//
// The model is an arena: tasks and users live in slices and reference each
// other through stable indices and the tagged Ref type instead of pointers.
// This keeps the structure trivially copyable and makes cycle checks cheap.
//
//	m := chain.NewModel()
//	u, _ := m.AddUser(chain.User{ID: "mary", EndTime: chain.At(0)})
//	a, _ := m.AddTask(chain.Task{ID: 1, Duration: 30})
//	_, _ = m.Link(a, chain.UserRef(u))
//	tasks := m.ExtractTaskList(chain.UserRef(u)) // [a]
package chain
