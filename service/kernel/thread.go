package kernel

import (
	"context"
	"log"

	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/event"
)

// ThreadCreate starts a thread of the caller's process at entry with arg in
// a0 and returns its tid, or -1 once the thread bound is reached.
func (s *Service) ThreadCreate(ctx context.Context, entry, arg uint64) int {
	return s.traced(ctx, SysThreadCreate, func(ctx context.Context, task *execution.Task) int {
		process := task.Process()
		fits := false
		process.WithInner(func(inner *execution.ProcessInner) {
			fits = inner.MutexDetector.Fits(inner.TaskIDs.Peek(), 0)
		})
		res := task.UserRes()
		if !fits || res == nil {
			return ResultError
		}
		thread, err := execution.NewTask(process, res.UstackBase, true)
		if err != nil {
			log.Printf("kernel: thread create in process %d: %v", process.PID(), err)
			return ResultError
		}
		if err = thread.StartAt(entry, arg); err != nil {
			log.Printf("kernel: thread create in process %d: %v", process.PID(), err)
			thread.Discard()
			return ResultError
		}
		process.WithInner(func(inner *execution.ProcessInner) {
			inner.AddTask(thread)
		})
		s.enqueue(thread)
		s.publish(ctx, event.TypeThread, task, event.Lifecycle{PID: process.PID(), TID: thread.Tid(), ParentPID: process.ParentPID()})
		return thread.Tid()
	})
}

// GetTid returns the caller's tid.
func (s *Service) GetTid(ctx context.Context) int {
	return s.call(ctx, SysGetTid, func(ctx context.Context, task *execution.Task) int {
		return task.Tid()
	})
}

// WaitTid reaps thread tid of the caller's process and returns its exit
// code. It returns -1 for the caller itself or a missing thread and -2 while
// the thread is running.
func (s *Service) WaitTid(ctx context.Context, tid int) int {
	return s.call(ctx, SysWaitTid, func(ctx context.Context, task *execution.Task) int {
		if task.Tid() == tid {
			return ResultError
		}
		result := ResultError
		reaped := false
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			waited := inner.LookupTask(tid)
			if waited == nil {
				return
			}
			code, exited := waited.ExitCode()
			if !exited {
				result = ResultNotExited
				return
			}
			inner.ReapTask(tid)
			result, reaped = code, true
		})
		if reaped {
			s.progress.Update(progress.Delta{Zombie: -1, Reaped: 1})
		}
		return result
	})
}
