package execution

import "fmt"

// TaskStatus represents the scheduling state of a task
type TaskStatus int

const (
	TaskStatusUninit TaskStatus = iota
	TaskStatusReady
	TaskStatusRunning
	TaskStatusBlocked
	TaskStatusZombie
)

func (s TaskStatus) String() string {
	switch s {
	case TaskStatusUninit:
		return "uninit"
	case TaskStatusReady:
		return "ready"
	case TaskStatusRunning:
		return "running"
	case TaskStatusBlocked:
		return "blocked"
	case TaskStatusZombie:
		return "zombie"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// transitions lists allowed status changes. Ready and Blocked tasks may turn
// zombie when their process is aborted.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusUninit:  {TaskStatusReady},
	TaskStatusReady:   {TaskStatusRunning, TaskStatusZombie},
	TaskStatusRunning: {TaskStatusReady, TaskStatusBlocked, TaskStatusZombie},
	TaskStatusBlocked: {TaskStatusReady, TaskStatusZombie},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to TaskStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
