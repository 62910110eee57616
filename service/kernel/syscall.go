package kernel

import (
	"context"
	"fmt"

	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/mm"
)

// Syscall numbers.
const (
	SysDup                  = 24
	SysClose                = 57
	SysRead                 = 63
	SysWrite                = 64
	SysExit                 = 93
	SysYield                = 124
	SysKill                 = 129
	SysSetPriority          = 140
	SysGetTime              = 169
	SysGetPid               = 172
	SysSbrk                 = 214
	SysMunmap               = 215
	SysFork                 = 220
	SysExec                 = 221
	SysMmap                 = 222
	SysWaitPid              = 260
	SysSpawn                = 400
	SysTaskInfo             = 410
	SysEnableDeadlockDetect = 469
	SysThreadCreate         = 1000
	SysGetTid               = 1001
	SysWaitTid              = 1002
	SysMutexCreate          = 1010
	SysMutexLock            = 1011
	SysMutexUnlock          = 1012
	SysMutexDestroy         = 1013
	SysSemaphoreCreate      = 1020
	SysSemaphoreUp          = 1021
	SysSemaphoreDown        = 1022
	SysSemaphoreDestroy     = 1023
	SysCondvarCreate        = 1030
	SysCondvarSignal        = 1031
	SysCondvarWait          = 1032
	SysCondvarDestroy       = 1033
)

var syscallNames = map[int]string{
	SysDup:                  "dup",
	SysClose:                "close",
	SysRead:                 "read",
	SysWrite:                "write",
	SysExit:                 "exit",
	SysYield:                "yield",
	SysKill:                 "kill",
	SysSetPriority:          "set_priority",
	SysGetTime:              "get_time",
	SysGetPid:               "getpid",
	SysSbrk:                 "sbrk",
	SysMunmap:               "munmap",
	SysFork:                 "fork",
	SysExec:                 "exec",
	SysMmap:                 "mmap",
	SysWaitPid:              "waitpid",
	SysSpawn:                "spawn",
	SysTaskInfo:             "task_info",
	SysEnableDeadlockDetect: "enable_deadlock_detect",
	SysThreadCreate:         "thread_create",
	SysGetTid:               "gettid",
	SysWaitTid:              "waittid",
	SysMutexCreate:          "mutex_create",
	SysMutexLock:            "mutex_lock",
	SysMutexUnlock:          "mutex_unlock",
	SysMutexDestroy:         "mutex_destroy",
	SysSemaphoreCreate:      "semaphore_create",
	SysSemaphoreUp:          "semaphore_up",
	SysSemaphoreDown:        "semaphore_down",
	SysSemaphoreDestroy:     "semaphore_destroy",
	SysCondvarCreate:        "condvar_create",
	SysCondvarSignal:        "condvar_signal",
	SysCondvarWait:          "condvar_wait",
	SysCondvarDestroy:       "condvar_destroy",
}

// SyscallName returns the name of syscall id.
func SyscallName(id int) string {
	if name, ok := syscallNames[id]; ok {
		return name
	}
	return fmt.Sprintf("syscall_%d", id)
}

// Syscall dispatches a raw trap. Pointer arguments are user virtual
// addresses of the calling task; strings are NUL terminated.
func (s *Service) Syscall(ctx context.Context, id int, args [3]uint64) int {
	switch id {
	case SysDup:
		return s.Dup(ctx, int(args[0]))
	case SysClose:
		return s.Close(ctx, int(args[0]))
	case SysRead:
		return s.Read(ctx, int(args[0]), args[1], args[2])
	case SysWrite:
		return s.Write(ctx, int(args[0]), args[1], args[2])
	case SysExit:
		s.Exit(ctx, int(int32(args[0])))
		return ResultOK
	case SysYield:
		return s.Yield(ctx)
	case SysKill:
		return s.Kill(ctx, int(args[0]), int(args[1]))
	case SysSetPriority:
		return s.SetPriority(ctx, int64(args[0]))
	case SysGetTime:
		return s.GetTime(ctx, args[0])
	case SysGetPid:
		return s.GetPid(ctx)
	case SysSbrk:
		return s.Sbrk(ctx, int64(int32(args[0])))
	case SysMunmap:
		return s.Munmap(ctx, args[0], args[1])
	case SysFork:
		return s.Fork(ctx)
	case SysExec:
		path, argv, ok := s.userCommand(args[0], args[1])
		if !ok {
			return s.fail(ctx, id)
		}
		return s.Exec(ctx, path, argv)
	case SysMmap:
		return s.Mmap(ctx, args[0], args[1], args[2])
	case SysWaitPid:
		return s.Wait(ctx, int(int64(args[0])), args[1])
	case SysSpawn:
		path, argv, ok := s.userCommand(args[0], 0)
		if !ok {
			return s.fail(ctx, id)
		}
		return s.spawn(ctx, path, argv)
	case SysTaskInfo:
		return s.TaskInfo(ctx, args[0])
	case SysEnableDeadlockDetect:
		return s.EnableDeadlockDetect(ctx, int(args[0]))
	case SysThreadCreate:
		return s.ThreadCreate(ctx, args[0], args[1])
	case SysGetTid:
		return s.GetTid(ctx)
	case SysWaitTid:
		return s.WaitTid(ctx, int(args[0]))
	case SysMutexCreate:
		return s.MutexCreate(ctx, args[0] != 0)
	case SysMutexLock:
		return s.MutexLock(ctx, int(args[0]))
	case SysMutexUnlock:
		return s.MutexUnlock(ctx, int(args[0]))
	case SysSemaphoreCreate:
		return s.SemaphoreCreate(ctx, int(args[0]))
	case SysSemaphoreUp:
		return s.SemaphoreUp(ctx, int(args[0]))
	case SysSemaphoreDown:
		return s.SemaphoreDown(ctx, int(args[0]))
	case SysCondvarCreate:
		return s.CondvarCreate(ctx)
	case SysCondvarSignal:
		return s.CondvarSignal(ctx, int(args[0]))
	case SysCondvarWait:
		return s.CondvarWait(ctx, int(args[0]), int(args[1]))
	case SysMutexDestroy:
		return s.MutexDestroy(ctx, int(args[0]))
	case SysSemaphoreDestroy:
		return s.SemaphoreDestroy(ctx, int(args[0]))
	case SysCondvarDestroy:
		return s.CondvarDestroy(ctx, int(args[0]))
	}
	return s.fail(ctx, id)
}

// fail records an unsupported or malformed call and returns ResultError.
func (s *Service) fail(ctx context.Context, id int) int {
	return s.call(ctx, id, func(context.Context, *execution.Task) int {
		return ResultError
	})
}

// userCommand reads a path and a NULL terminated argv pointer array from the
// current task's address space. argvPtr 0 means no arguments.
func (s *Service) userCommand(pathPtr, argvPtr uint64) (string, []string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", nil, false
	}
	var path string
	var args []string
	var err error
	s.current.Process().WithInner(func(inner *execution.ProcessInner) {
		if inner.Space == nil {
			err = execution.ErrZombie
			return
		}
		if path, err = mm.ReadCString(inner.Space, s.memory, pathPtr, s.config.MaxPathLength); err != nil {
			return
		}
		for ptr := argvPtr; ptr != 0; ptr += 8 {
			var argPtr uint64
			if argPtr, err = mm.ReadUint64(inner.Space, s.memory, ptr); err != nil || argPtr == 0 {
				return
			}
			var arg string
			if arg, err = mm.ReadCString(inner.Space, s.memory, argPtr, s.config.MaxPathLength); err != nil {
				return
			}
			args = append(args, arg)
		}
	})
	return path, args, err == nil
}
