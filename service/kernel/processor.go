package kernel

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/messaging"
	"github.com/viant/kproc/tracing"
)

// call runs fn for the current task with the CPU held and stores the result
// in the task's a0 while the task is still alive.
func (s *Service) call(ctx context.Context, id int, fn func(ctx context.Context, task *execution.Task) int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.enter(id)
	if err != nil {
		log.Printf("kernel: %v rejected: %v", SyscallName(id), err)
		return ResultError
	}
	if !s.permit(ctx, task, id) {
		log.Printf("kernel: %v denied for task %v", SyscallName(id), task)
		s.setResult(task, ResultError)
		return ResultError
	}
	result := fn(execution.WithTask(ctx, task), task)
	s.setResult(task, result)
	return result
}

// traced is call inside a span named after the syscall.
func (s *Service) traced(ctx context.Context, id int, fn func(ctx context.Context, task *execution.Task) int) int {
	ctx, span := tracing.StartSpan(ctx, "kernel."+SyscallName(id), "INTERNAL")
	result := s.call(ctx, id, func(ctx context.Context, task *execution.Task) int {
		span.WithInt("pid", task.Process().PID()).WithInt("tid", task.Tid())
		return fn(ctx, task)
	})
	span.WithInt("result", result)
	var err error
	if result == ResultError || result == ResultDeadlock {
		err = fmt.Errorf("%v returned %d", SyscallName(id), result)
	}
	tracing.EndSpan(span, err)
	return result
}

func (s *Service) enter(id int) (*execution.Task, error) {
	if s.halted {
		return nil, ErrHalted
	}
	if s.current == nil {
		return nil, ErrIdle
	}
	s.current.RecordSyscall(id)
	return s.current, nil
}

// permit consults the context policy first, then the kernel one.
func (s *Service) permit(ctx context.Context, task *execution.Task, id int) bool {
	p := policy.FromContext(ctx)
	if p == nil {
		p = s.policy
	}
	return p.Permit(ctx, SyscallName(id), task.Process().PID(), task.Tid())
}

func (s *Service) setResult(task *execution.Task, result int) {
	if task.UserRes() == nil {
		return
	}
	if err := task.UpdateTrapContext(func(cx *execution.TrapContext) {
		cx.X[execution.RegA0] = uint64(int64(result))
	}); err != nil {
		log.Printf("kernel: task %v: failed to store result: %v", task, err)
	}
}

// register adds a new process to the table and makes its first thread
// runnable. The thread's trap context must already be written. When the
// table rejects the process it is unlinked from parent and abandoned.
func (s *Service) register(ctx context.Context, parent, process *execution.Process, task *execution.Task) error {
	if err := s.processes.Save(ctx, process); err != nil {
		if parent != nil {
			parent.WithInner(func(inner *execution.ProcessInner) {
				inner.RemoveChild(process)
			})
		}
		process.Abandon(task)
		return err
	}
	s.enqueue(task)
	return nil
}

func (s *Service) enqueue(task *execution.Task) {
	task.SetStatus(execution.TaskStatusReady)
	s.ready.Add(task)
	s.progress.Update(progress.Delta{Total: 1, Ready: 1})
}

// runNext switches the CPU to the ready task with the smallest stride.
func (s *Service) runNext() {
	s.current = nil
	if s.halted {
		return
	}
	task, ok := s.ready.Fetch()
	if !ok {
		log.Printf("kernel: no ready task, cpu idle")
		return
	}
	task.SetStatus(execution.TaskStatusRunning)
	s.progress.Update(progress.Delta{Ready: -1, Running: 1})
	s.current = task
}

// suspend puts the running task back on the ready queue.
func (s *Service) suspend(task *execution.Task) {
	task.SetStatus(execution.TaskStatusReady)
	s.ready.Add(task)
	s.progress.Update(progress.Delta{Running: -1, Ready: 1})
	if task == s.current {
		s.runNext()
	}
}

// block parks the running task until wake.
func (s *Service) block(task *execution.Task) {
	task.SetStatus(execution.TaskStatusBlocked)
	s.progress.Update(progress.Delta{Running: -1, Blocked: 1})
	if task == s.current {
		s.runNext()
	}
}

func (s *Service) wake(task *execution.Task) {
	task.SetStatus(execution.TaskStatusReady)
	s.ready.Add(task)
	s.progress.Update(progress.Delta{Blocked: -1, Ready: 1})
}

func statusDelta(status execution.TaskStatus, n int) progress.Delta {
	switch status {
	case execution.TaskStatusReady:
		return progress.Delta{Ready: n}
	case execution.TaskStatusRunning:
		return progress.Delta{Running: n}
	case execution.TaskStatusBlocked:
		return progress.Delta{Blocked: n}
	case execution.TaskStatusZombie:
		return progress.Delta{Zombie: n}
	}
	return progress.Delta{}
}

// killTask moves task to zombie with code, whatever its live state.
func (s *Service) killTask(task *execution.Task, code int) {
	from := task.Status()
	s.ready.Remove(task)
	task.Exit(code)
	delta := statusDelta(from, -1)
	delta.Zombie++
	s.progress.Update(delta)
}

// exitTask ends task and, when it was the last live thread, its process.
func (s *Service) exitTask(ctx context.Context, task *execution.Task, code int) {
	s.killTask(task, code)
	process := task.Process()
	live := 0
	process.WithInner(func(inner *execution.ProcessInner) {
		inner.MutexDetector.ClearNeed(task.Tid())
		inner.SemaphoreDetector.ClearNeed(task.Tid())
		live = inner.LiveThreads()
	})
	if live > 0 {
		s.publish(ctx, event.TypeThread, task, event.Lifecycle{PID: process.PID(), TID: task.Tid(), ParentPID: process.ParentPID(), ExitCode: code})
		return
	}
	s.terminate(ctx, task, process, code)
}

// terminate turns process into a zombie and hands its children to init.
func (s *Service) terminate(ctx context.Context, task *execution.Task, process *execution.Process, code int) {
	orphans := process.Terminate(code)
	s.publish(ctx, event.TypeExit, task, event.Lifecycle{PID: process.PID(), ParentPID: process.ParentPID(), ExitCode: code})
	if process == s.initProc {
		log.Printf("kernel: init process exited with code %d, halting", code)
		s.halted = true
		return
	}
	s.initProc.Adopt(orphans)
}

// abort kills every live thread of process with code and terminates it.
func (s *Service) abort(ctx context.Context, process *execution.Process, code int, cause error) {
	log.Printf("kernel: aborting process %d: %v", process.PID(), cause)
	var tasks []*execution.Task
	process.WithInner(func(inner *execution.ProcessInner) {
		for _, task := range inner.Tasks {
			if task != nil && task.Status() != execution.TaskStatusZombie {
				tasks = append(tasks, task)
			}
		}
	})
	for _, task := range tasks {
		s.killTask(task, code)
	}
	var last *execution.Task
	if len(tasks) > 0 {
		last = tasks[0]
	}
	s.terminate(ctx, last, process, code)
	if s.current != nil && s.current.Process() == process {
		s.runNext()
	}
}

func (s *Service) publish(ctx context.Context, eventType string, task *execution.Task, data event.Lifecycle) {
	if s.lifecycle == nil {
		return
	}
	evCtx := &event.Context{PID: data.PID, TID: data.TID, EventType: eventType}
	if task != nil {
		evCtx.PID = task.Process().PID()
		evCtx.TID = task.Tid()
	}
	if caller := execution.ContextValue[*execution.Task](ctx); caller != nil {
		evCtx.PID = caller.Process().PID()
		evCtx.TID = caller.Tid()
	}
	if err := s.lifecycle.Publish(ctx, event.NewEvent(evCtx, data)); err != nil && !errors.Is(err, messaging.ErrQueueFull) {
		log.Printf("kernel: failed to publish %v event: %v", eventType, err)
	}
}
