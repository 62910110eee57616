package kernel

import (
	"context"
	"log"

	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/deadlock"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/primitive"
)

// freeSlot returns the first nil slot of items, appending one when none is
// free, or -1 when the slot would exceed limit.
func freeSlot[T any](items *[]*T, limit int) int {
	for i, item := range *items {
		if item == nil {
			return i
		}
	}
	if len(*items) >= limit {
		return -1
	}
	*items = append(*items, nil)
	return len(*items) - 1
}

func slotOf[T any](items []*T, id int) *T {
	if id < 0 || id >= len(items) {
		return nil
	}
	return items[id]
}

func logDetector(task *execution.Task, err error) {
	if err != nil {
		log.Printf("kernel: task %v: deadlock detector: %v", task, err)
	}
}

// refuse publishes a deadlock event for a request rolled back as unsafe.
func (s *Service) refuse(ctx context.Context, task *execution.Task, kind string, id int) int {
	log.Printf("kernel: task %v: %v %d request refused, unsafe state", task, kind, id)
	process := task.Process()
	s.publish(ctx, event.TypeDeadlock, task, event.Lifecycle{PID: process.PID(), TID: task.Tid(), ParentPID: process.ParentPID(), Program: kind})
	return ResultDeadlock
}

// EnableDeadlockDetect turns detection on (1) or off (0) for both resource
// families of the caller's process. Turning it on seeds the matrices from
// the objects that already exist.
func (s *Service) EnableDeadlockDetect(ctx context.Context, enabled int) int {
	return s.call(ctx, SysEnableDeadlockDetect, func(ctx context.Context, task *execution.Task) int {
		if enabled != 0 && enabled != 1 {
			return ResultError
		}
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			on := enabled == 1
			if on && !inner.MutexDetector.Enabled() {
				seedMutexes(task, inner.MutexDetector, inner.Mutexes)
			}
			if on && !inner.SemaphoreDetector.Enabled() {
				seedSemaphores(task, inner.SemaphoreDetector, inner.Semaphores)
			}
			inner.MutexDetector.Enable(on)
			inner.SemaphoreDetector.Enable(on)
		})
		return ResultOK
	})
}

func resetColumns(detector *deadlock.Detector) {
	for r := 0; r < detector.Bounds().MaxResources; r++ {
		detector.ResetResource(r)
	}
}

func seedMutexes(task *execution.Task, detector *deadlock.Detector, mutexes []*primitive.Mutex[*execution.Task]) {
	detector.Enable(true)
	resetColumns(detector)
	for r, mutex := range mutexes {
		if mutex == nil {
			continue
		}
		logDetector(task, detector.AddTotal(r, 1))
		if owner, locked := mutex.Owner(); locked {
			logDetector(owner, detector.Allocate(owner.Tid(), r, 1))
		}
	}
}

func seedSemaphores(task *execution.Task, detector *deadlock.Detector, semaphores []*primitive.Semaphore[*execution.Task]) {
	detector.Enable(true)
	resetColumns(detector)
	for r, semaphore := range semaphores {
		if semaphore != nil && semaphore.Count() > 0 {
			logDetector(task, detector.AddTotal(r, semaphore.Count()))
		}
	}
}

// MutexCreate allocates a mutex slot and returns its id. Spin and blocking
// mutexes share the same wait queue.
func (s *Service) MutexCreate(ctx context.Context, blocking bool) int {
	return s.call(ctx, SysMutexCreate, func(ctx context.Context, task *execution.Task) int {
		id := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if id = freeSlot(&inner.Mutexes, inner.MutexDetector.Bounds().MaxResources); id < 0 {
				return
			}
			inner.Mutexes[id] = primitive.NewMutex[*execution.Task](blocking)
			inner.MutexDetector.ResetResource(id)
			logDetector(task, inner.MutexDetector.AddTotal(id, 1))
		})
		return id
	})
}

// MutexLock acquires mutex id, blocking the caller while it is held. It
// returns -0xDEAD when waiting would leave the process unsafe.
func (s *Service) MutexLock(ctx context.Context, id int) int {
	return s.call(ctx, SysMutexLock, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		blocked := false
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			mutex := slotOf(inner.Mutexes, id)
			if mutex == nil {
				return
			}
			if owner, locked := mutex.Owner(); locked && owner == task {
				return
			}
			detector := inner.MutexDetector
			tid := task.Tid()
			if !mutex.Locked() {
				logDetector(task, detector.Allocate(tid, id, 1))
				if !detector.Detect() {
					logDetector(task, detector.Release(tid, id, 1))
					result = ResultDeadlock
					return
				}
				mutex.Lock(task)
				result = ResultOK
				return
			}
			logDetector(task, detector.AdjustNeed(tid, id, 1))
			if !detector.Detect() {
				logDetector(task, detector.AdjustNeed(tid, id, -1))
				result = ResultDeadlock
				return
			}
			mutex.Lock(task)
			blocked = true
			result = ResultOK
		})
		if result == ResultDeadlock {
			return s.refuse(ctx, task, "mutex", id)
		}
		if blocked {
			s.block(task)
		}
		return result
	})
}

// MutexUnlock releases mutex id and hands it to the first waiter.
func (s *Service) MutexUnlock(ctx context.Context, id int) int {
	return s.call(ctx, SysMutexUnlock, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		var next *execution.Task
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if mutex := slotOf(inner.Mutexes, id); mutex != nil {
				next, result = s.unlock(task, inner, mutex, id)
			}
		})
		if next != nil {
			s.wake(next)
		}
		return result
	})
}

// unlock releases mutex for task and returns the waiter that now owns it.
func (s *Service) unlock(task *execution.Task, inner *execution.ProcessInner, mutex *primitive.Mutex[*execution.Task], id int) (*execution.Task, int) {
	next, handed, err := mutex.Unlock(task)
	if err != nil {
		return nil, ResultError
	}
	// waiters that exited while queued are skipped
	for handed && next.Status() == execution.TaskStatusZombie {
		next, handed, _ = mutex.Unlock(next)
	}
	logDetector(task, inner.MutexDetector.Release(task.Tid(), id, 1))
	if !handed {
		return nil, ResultOK
	}
	logDetector(next, inner.MutexDetector.Allocate(next.Tid(), id, 1))
	return next, ResultOK
}

// MutexDestroy frees mutex id; a held or contended mutex is kept.
func (s *Service) MutexDestroy(ctx context.Context, id int) int {
	return s.call(ctx, SysMutexDestroy, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			mutex := slotOf(inner.Mutexes, id)
			if mutex == nil || mutex.Locked() || mutex.Waiting() > 0 {
				return
			}
			inner.Mutexes[id] = nil
			inner.MutexDetector.ResetResource(id)
			result = ResultOK
		})
		return result
	})
}

// SemaphoreCreate allocates a semaphore holding count units and returns its id.
func (s *Service) SemaphoreCreate(ctx context.Context, count int) int {
	return s.call(ctx, SysSemaphoreCreate, func(ctx context.Context, task *execution.Task) int {
		if count < 0 {
			return ResultError
		}
		id := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if id = freeSlot(&inner.Semaphores, inner.SemaphoreDetector.Bounds().MaxResources); id < 0 {
				return
			}
			inner.Semaphores[id] = primitive.NewSemaphore[*execution.Task](count)
			inner.SemaphoreDetector.ResetResource(id)
			logDetector(task, inner.SemaphoreDetector.AddTotal(id, count))
		})
		return id
	})
}

// SemaphoreUp returns one unit of semaphore id. A unit the caller holds goes
// back to the pool, otherwise a new unit is minted; a woken waiter receives it.
func (s *Service) SemaphoreUp(ctx context.Context, id int) int {
	return s.call(ctx, SysSemaphoreUp, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		var woken *execution.Task
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			semaphore := slotOf(inner.Semaphores, id)
			if semaphore == nil {
				return
			}
			detector := inner.SemaphoreDetector
			if detector.Allocation(task.Tid(), id) > 0 {
				logDetector(task, detector.Release(task.Tid(), id, 1))
			} else {
				logDetector(task, detector.AddTotal(id, 1))
			}
			waiter, ok := semaphore.Up()
			// an exited waiter gives back the unit it queued for
			for ok && waiter.Status() == execution.TaskStatusZombie {
				waiter, ok = semaphore.Up()
			}
			if ok {
				logDetector(waiter, detector.Allocate(waiter.Tid(), id, 1))
				woken = waiter
			}
			result = ResultOK
		})
		if woken != nil {
			s.wake(woken)
		}
		return result
	})
}

// SemaphoreDown takes one unit of semaphore id, blocking while none is left.
// It returns -0xDEAD when waiting would leave the process unsafe.
func (s *Service) SemaphoreDown(ctx context.Context, id int) int {
	return s.call(ctx, SysSemaphoreDown, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		blocked := false
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			semaphore := slotOf(inner.Semaphores, id)
			if semaphore == nil {
				return
			}
			detector := inner.SemaphoreDetector
			tid := task.Tid()
			if semaphore.Count() > 0 {
				logDetector(task, detector.Allocate(tid, id, 1))
				if !detector.Detect() {
					logDetector(task, detector.Release(tid, id, 1))
					result = ResultDeadlock
					return
				}
				semaphore.Down(task)
				result = ResultOK
				return
			}
			logDetector(task, detector.AdjustNeed(tid, id, 1))
			if !detector.Detect() {
				logDetector(task, detector.AdjustNeed(tid, id, -1))
				result = ResultDeadlock
				return
			}
			semaphore.Down(task)
			blocked = true
			result = ResultOK
		})
		if result == ResultDeadlock {
			return s.refuse(ctx, task, "semaphore", id)
		}
		if blocked {
			s.block(task)
		}
		return result
	})
}

// SemaphoreDestroy frees semaphore id unless threads wait on it.
func (s *Service) SemaphoreDestroy(ctx context.Context, id int) int {
	return s.call(ctx, SysSemaphoreDestroy, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			semaphore := slotOf(inner.Semaphores, id)
			if semaphore == nil || semaphore.Waiting() > 0 {
				return
			}
			inner.Semaphores[id] = nil
			inner.SemaphoreDetector.ResetResource(id)
			result = ResultOK
		})
		return result
	})
}

// CondvarCreate allocates a condition variable and returns its id.
func (s *Service) CondvarCreate(ctx context.Context) int {
	return s.call(ctx, SysCondvarCreate, func(ctx context.Context, task *execution.Task) int {
		id := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if id = freeSlot(&inner.Condvars, inner.MutexDetector.Bounds().MaxResources); id < 0 {
				return
			}
			inner.Condvars[id] = primitive.NewCondvar[execution.CondWaiter]()
		})
		return id
	})
}

// CondvarSignal wakes the first waiter of condvar id. The waiter resumes
// once it owns its mutex again; until then it waits on the mutex.
func (s *Service) CondvarSignal(ctx context.Context, id int) int {
	return s.call(ctx, SysCondvarSignal, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		var woken *execution.Task
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			condvar := slotOf(inner.Condvars, id)
			if condvar == nil {
				return
			}
			result = ResultOK
			waiter, ok := condvar.Signal()
			for ok && waiter.Task.Status() == execution.TaskStatusZombie {
				waiter, ok = condvar.Signal()
			}
			if !ok {
				return
			}
			mutex := slotOf(inner.Mutexes, waiter.Mutex)
			if mutex == nil {
				woken = waiter.Task
				return
			}
			if mutex.Lock(waiter.Task) {
				logDetector(waiter.Task, inner.MutexDetector.Allocate(waiter.Task.Tid(), waiter.Mutex, 1))
				woken = waiter.Task
				return
			}
			logDetector(waiter.Task, inner.MutexDetector.AdjustNeed(waiter.Task.Tid(), waiter.Mutex, 1))
		})
		if woken != nil {
			s.wake(woken)
		}
		return result
	})
}

// CondvarWait releases mutex mutexID and parks the caller on condvar id.
func (s *Service) CondvarWait(ctx context.Context, id, mutexID int) int {
	return s.call(ctx, SysCondvarWait, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		var next *execution.Task
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			condvar := slotOf(inner.Condvars, id)
			mutex := slotOf(inner.Mutexes, mutexID)
			if condvar == nil || mutex == nil {
				return
			}
			if next, result = s.unlock(task, inner, mutex, mutexID); result != ResultOK {
				return
			}
			condvar.Wait(execution.CondWaiter{Task: task, Mutex: mutexID})
		})
		if result != ResultOK {
			return result
		}
		if next != nil {
			s.wake(next)
		}
		s.block(task)
		return ResultOK
	})
}

// CondvarDestroy frees condvar id unless threads wait on it.
func (s *Service) CondvarDestroy(ctx context.Context, id int) int {
	return s.call(ctx, SysCondvarDestroy, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			condvar := slotOf(inner.Condvars, id)
			if condvar == nil || condvar.Waiting() > 0 {
				return
			}
			inner.Condvars[id] = nil
			result = ResultOK
		})
		return result
	})
}
