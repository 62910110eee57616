package kernel

import (
	"context"
	"encoding/binary"
	"errors"
	"log"

	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/cmdline"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/mm"
	"github.com/viant/kproc/service/scheduler"
)

// TaskInfo layout: status u32, syscall counters [MaxSyscallNum]u32, then
// running time in milliseconds as a word aligned u64.
const (
	taskInfoTimesOffset = 4
	taskInfoTimeOffset  = (taskInfoTimesOffset + execution.MaxSyscallNum*4 + 7) &^ 7
	TaskInfoSize        = taskInfoTimeOffset + 8
)

// Exit terminates the calling thread with code. When it was the last live
// thread the process becomes a zombie and its children move to init.
func (s *Service) Exit(ctx context.Context, code int) {
	s.traced(ctx, SysExit, func(ctx context.Context, task *execution.Task) int {
		s.exitTask(ctx, task, code)
		if s.current == task {
			s.runNext()
		}
		return ResultOK
	})
}

// Yield gives up the CPU.
func (s *Service) Yield(ctx context.Context) int {
	return s.call(ctx, SysYield, func(ctx context.Context, task *execution.Task) int {
		s.suspend(task)
		return ResultOK
	})
}

// GetPid returns the caller's pid.
func (s *Service) GetPid(ctx context.Context) int {
	return s.call(ctx, SysGetPid, func(ctx context.Context, task *execution.Task) int {
		return task.Process().PID()
	})
}

// Fork duplicates the calling single-threaded process. The parent receives
// the child pid, the child observes 0. Forking a multi-threaded process
// aborts it.
func (s *Service) Fork(ctx context.Context) int {
	return s.traced(ctx, SysFork, func(ctx context.Context, task *execution.Task) int {
		parent := task.Process()
		child, childTask, err := parent.Fork()
		if err != nil {
			if errors.Is(err, execution.ErrMultiThreaded) {
				s.abort(ctx, parent, ResultError, err)
			} else {
				log.Printf("kernel: fork of process %d failed: %v", parent.PID(), err)
			}
			return ResultError
		}
		if err = s.register(ctx, parent, child, childTask); err != nil {
			log.Printf("kernel: failed to register process %d: %v", child.PID(), err)
			return ResultError
		}
		s.publish(ctx, event.TypeFork, task, event.Lifecycle{PID: parent.PID(), ParentPID: parent.ParentPID(), ChildPID: child.PID()})
		return child.PID()
	})
}

// Exec replaces the caller's program with the image named path and returns
// argc. It returns -1 when the image cannot be loaded. Exec from a
// multi-threaded process aborts it.
func (s *Service) Exec(ctx context.Context, path string, args []string) int {
	return s.traced(ctx, SysExec, func(ctx context.Context, task *execution.Task) int {
		process := task.Process()
		img, err := s.images.Load(ctx, path)
		if err != nil {
			log.Printf("kernel: exec %v: %v", path, err)
			return ResultError
		}
		argc, err := process.Exec(img, args)
		if err != nil {
			if errors.Is(err, execution.ErrMultiThreaded) {
				s.abort(ctx, process, ResultError, err)
			} else {
				log.Printf("kernel: exec %v in process %d: %v", path, process.PID(), err)
			}
			return ResultError
		}
		s.publish(ctx, event.TypeExec, task, event.Lifecycle{PID: process.PID(), ParentPID: process.ParentPID(), Program: img.Name})
		return argc
	})
}

// ExecCommand parses line and execs its first word with every word as argv.
func (s *Service) ExecCommand(ctx context.Context, line string) int {
	path, args, err := cmdline.Parse(line)
	if err != nil {
		log.Printf("kernel: exec %q: %v", line, err)
		return s.fail(ctx, SysExec)
	}
	return s.Exec(ctx, path, args)
}

// Wait reaps a zombie child. pid -1 matches any child. It returns -1 when
// no child matches or exitCodePtr is not writable, -2 when no matching child
// has exited, else the reaped pid with its exit code stored at exitCodePtr.
// A zero exitCodePtr discards the code.
func (s *Service) Wait(ctx context.Context, pid int, exitCodePtr uint64) int {
	return s.traced(ctx, SysWaitPid, func(ctx context.Context, task *execution.Task) int {
		parent := task.Process()
		var children []*execution.Process
		parent.WithInner(func(inner *execution.ProcessInner) {
			children = append(children, inner.Children...)
		})
		found := false
		var zombie *execution.Process
		for _, child := range children {
			if pid != -1 && child.PID() != pid {
				continue
			}
			found = true
			if child.IsZombie() {
				zombie = child
				break
			}
		}
		if !found {
			return ResultError
		}
		if zombie == nil {
			return ResultNotExited
		}
		var code int
		zombie.WithInner(func(inner *execution.ProcessInner) {
			code = inner.ExitCode
		})
		result := ResultOK
		parent.WithInner(func(inner *execution.ProcessInner) {
			if exitCodePtr != 0 && (inner.Space == nil || !mm.Translatable(inner.Space, s.memory, exitCodePtr, 4)) {
				result = ResultError
				return
			}
			for i, child := range inner.Children {
				if child == zombie {
					inner.Children = append(inner.Children[:i], inner.Children[i+1:]...)
					break
				}
			}
			if exitCodePtr != 0 {
				if err := mm.WriteInt32(inner.Space, s.memory, exitCodePtr, int32(code)); err != nil {
					result = ResultError
				}
			}
		})
		if result != ResultOK {
			return result
		}
		s.reap(ctx, task, zombie, code)
		return zombie.PID()
	})
}

// reap drops an exited child that has been unlinked from its parent.
func (s *Service) reap(ctx context.Context, task *execution.Task, child *execution.Process, code int) {
	count := 0
	child.WithInner(func(inner *execution.ProcessInner) {
		for _, t := range inner.Tasks {
			if t == nil {
				continue
			}
			if s.ready.Contains(t) {
				panic("kernel: reaped task " + t.String() + " is still queued")
			}
			count++
		}
	})
	if err := s.processes.Delete(ctx, child.PID()); err != nil {
		log.Printf("kernel: process %d missing from table: %v", child.PID(), err)
	}
	child.Reap()
	s.progress.Update(progress.Delta{Zombie: -count, Reaped: count})
	s.publish(ctx, event.TypeReap, task, event.Lifecycle{PID: task.Process().PID(), ChildPID: child.PID(), ExitCode: code})
}

// Spawn creates a child process running the image named path.
func (s *Service) Spawn(ctx context.Context, path string) int {
	return s.spawn(ctx, path, nil)
}

// SpawnCommand parses line and spawns its first word with every word as argv.
func (s *Service) SpawnCommand(ctx context.Context, line string) int {
	path, args, err := cmdline.Parse(line)
	if err != nil {
		log.Printf("kernel: spawn %q: %v", line, err)
		return s.fail(ctx, SysSpawn)
	}
	return s.spawn(ctx, path, args)
}

func (s *Service) spawn(ctx context.Context, path string, args []string) int {
	return s.traced(ctx, SysSpawn, func(ctx context.Context, task *execution.Task) int {
		parent := task.Process()
		img, err := s.images.Load(ctx, path)
		if err != nil {
			log.Printf("kernel: spawn %v: %v", path, err)
			return ResultError
		}
		child, childTask, err := execution.New(s.env, img, args, execution.WithParent(parent.PID()), execution.WithFdTable(s.console()))
		if err != nil {
			log.Printf("kernel: spawn %v: %v", path, err)
			return ResultError
		}
		parent.WithInner(func(inner *execution.ProcessInner) {
			inner.Children = append(inner.Children, child)
		})
		if err = s.register(ctx, parent, child, childTask); err != nil {
			log.Printf("kernel: failed to register process %d: %v", child.PID(), err)
			return ResultError
		}
		s.publish(ctx, event.TypeSpawn, task, event.Lifecycle{PID: child.PID(), ParentPID: parent.PID(), Program: img.Name})
		return child.PID()
	})
}

// SetPriority sets the caller's stride priority; values below 2 or above
// the big stride fail.
func (s *Service) SetPriority(ctx context.Context, priority int64) int {
	return s.call(ctx, SysSetPriority, func(ctx context.Context, task *execution.Task) int {
		if priority < scheduler.MinPriority || !s.config.Scheduler.Accepts(uint64(priority)) {
			return ResultError
		}
		task.SetPriority(uint64(priority))
		return int(priority)
	})
}

// GetTime stores seconds and microseconds as two u64 at ptr.
func (s *Service) GetTime(ctx context.Context, ptr uint64) int {
	return s.call(ctx, SysGetTime, func(ctx context.Context, task *execution.Task) int {
		sec, usec := clock.TimeVal(clock.Now())
		result := ResultOK
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if inner.Space == nil || !mm.Translatable(inner.Space, s.memory, ptr, 16) {
				result = ResultError
				return
			}
			if mm.WriteUint64(inner.Space, s.memory, ptr, sec) != nil || mm.WriteUint64(inner.Space, s.memory, ptr+8, usec) != nil {
				result = ResultError
			}
		})
		return result
	})
}

// TaskInfo stores the caller's status, syscall counters and running time at ptr.
func (s *Service) TaskInfo(ctx context.Context, ptr uint64) int {
	return s.call(ctx, SysTaskInfo, func(ctx context.Context, task *execution.Task) int {
		times := task.SyscallTimes()
		counters := make([]byte, len(times)*4)
		for i, n := range times {
			binary.LittleEndian.PutUint32(counters[i*4:], n)
		}
		result := ResultOK
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			space := inner.Space
			if space == nil || !mm.Translatable(space, s.memory, ptr, TaskInfoSize) {
				result = ResultError
				return
			}
			if mm.WriteUint32(space, s.memory, ptr, uint32(task.Status())) != nil ||
				mm.WriteBytes(space, s.memory, ptr+taskInfoTimesOffset, counters) != nil ||
				mm.WriteUint64(space, s.memory, ptr+taskInfoTimeOffset, task.RunningMillis()) != nil {
				result = ResultError
			}
		})
		return result
	})
}

// Mmap maps [start, start+length) with the rwx bits of port.
func (s *Service) Mmap(ctx context.Context, start, length, port uint64) int {
	return s.call(ctx, SysMmap, func(ctx context.Context, task *execution.Task) int {
		if !s.validRegion(start, length) || port&^0x7 != 0 || port&0x7 == 0 {
			return ResultError
		}
		ok := false
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if inner.Space != nil {
				ok = inner.Space.MapRegion(start, start+length, mm.PermFromPort(port))
			}
		})
		if !ok {
			return ResultError
		}
		return ResultOK
	})
}

// Munmap unmaps [start, start+length); every page must be mapped.
func (s *Service) Munmap(ctx context.Context, start, length uint64) int {
	return s.call(ctx, SysMunmap, func(ctx context.Context, task *execution.Task) int {
		if !s.validRegion(start, length) {
			return ResultError
		}
		ok := false
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if inner.Space != nil {
				ok = inner.Space.UnmapRegion(start, start+length)
			}
		})
		if !ok {
			return ResultError
		}
		return ResultOK
	})
}

// Sbrk grows or shrinks the caller's heap by size bytes and returns the
// previous break, or -1 when the break would drop below the heap bottom or
// the pages cannot be mapped.
func (s *Service) Sbrk(ctx context.Context, size int64) int {
	return s.call(ctx, SysSbrk, func(ctx context.Context, task *execution.Task) int {
		var old uint64
		ok := false
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			old, ok = inner.ChangeBrk(s.config.Layout, size)
		})
		if !ok {
			return ResultError
		}
		return int(old)
	})
}

func (s *Service) validRegion(start, length uint64) bool {
	return start%s.config.Layout.PageSize == 0 && length > 0 && start+length > start
}

// Kill records signal as pending on process pid.
func (s *Service) Kill(ctx context.Context, pid int, signal int) int {
	return s.call(ctx, SysKill, func(ctx context.Context, task *execution.Task) int {
		if signal <= 0 || signal > execution.MaxSignal {
			return ResultError
		}
		target, err := s.processes.Load(ctx, pid)
		if err != nil || target.IsZombie() {
			return ResultError
		}
		target.WithInner(func(inner *execution.ProcessInner) {
			inner.Signals = inner.Signals.With(signal)
		})
		s.publish(ctx, event.TypeKill, task, event.Lifecycle{PID: pid, ParentPID: target.ParentPID(), ExitCode: signal})
		return ResultOK
	})
}
