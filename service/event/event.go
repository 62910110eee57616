// Package event publishes typed kernel events (process lifecycle, deadlock
// refusals) over messaging queues.
package event

import (
	"time"

	"github.com/viant/kproc/internal/clock"
)

// Event types emitted by the kernel.
const (
	TypeSpawn    = "spawn"
	TypeFork     = "fork"
	TypeExec     = "exec"
	TypeExit     = "exit"
	TypeReap     = "reap"
	TypeThread   = "thread"
	TypeDeadlock = "deadlock"
	TypeKill     = "kill"
)

// Context identifies the task that caused an event.
type Context struct {
	PID         int    `json:"pid"`
	TID         int    `json:"tid"`
	EventType   string `json:"eventType"`
	Syscall     string `json:"syscall,omitempty"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

// Event wraps a payload with its context.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// Lifecycle describes a process or thread state change.
type Lifecycle struct {
	PID       int    `json:"pid"`
	TID       int    `json:"tid"`
	ParentPID int    `json:"parentPid"`
	ChildPID  int    `json:"childPid,omitempty"`
	Program   string `json:"program,omitempty"`
	ExitCode  int    `json:"exitCode"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
