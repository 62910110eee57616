package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/viant/kproc/internal/clock"
)

// MaxSyscallNum bounds the per-task syscall counters.
const MaxSyscallNum = 500

// Task is a thread control block.
type Task struct {
	process *Process
	tid     int
	kstack  *KernelStack

	mu        sync.Mutex
	status    TaskStatus
	ctx       TaskContext
	res       *TaskUserRes
	trapCxPPN uint64
	exitCode  *int
	stride    uint64
	priority  uint64
	firstRun  time.Time
	syscalls  [MaxSyscallNum]uint32
}

// NewTask creates a thread of process with a fresh tid and kernel stack.
// When allocUserRes is false the user stack and trap context page must
// already exist in the address space, as after fork.
func NewTask(process *Process, ustackBase uint64, allocUserRes bool) (*Task, error) {
	env := process.env
	var res *TaskUserRes
	var ppn uint64
	var err error
	process.WithInner(func(inner *ProcessInner) {
		if inner.Space == nil {
			err = ErrZombie
			return
		}
		tid := inner.AllocTid()
		res = newTaskUserRes(tid, ustackBase, env.Layout)
		if allocUserRes {
			if err = res.AllocUserRes(inner.Space); err != nil {
				inner.DeallocTid(tid)
				return
			}
		}
		if ppn, err = res.TrapCxPPN(inner.Space, env.Layout.PageSize); err != nil {
			if allocUserRes {
				res.DeallocUserRes(inner.Space)
			}
			inner.DeallocTid(tid)
		}
	})
	if err != nil {
		return nil, err
	}
	kstack := NewKernelStack(env)
	return &Task{
		process:   process,
		tid:       res.Tid,
		kstack:    kstack,
		status:    TaskStatusUninit,
		ctx:       GotoTrapReturn(kstack.Top(), env.TrapReturn),
		res:       res,
		trapCxPPN: ppn,
		priority:  env.DefaultPriority,
	}, nil
}

func (t *Task) String() string {
	return fmt.Sprintf("%d/%d", t.process.pid, t.tid)
}

// Process returns the owning process.
func (t *Task) Process() *Process { return t.process }

// Tid returns the thread id within the process.
func (t *Task) Tid() int { return t.tid }

// KernelStack returns the kernel stack, nil once released.
func (t *Task) KernelStack() *KernelStack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kstack
}

// Context returns the saved kernel context.
func (t *Task) Context() TaskContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

// Status returns the scheduling status.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus changes the status; an invalid transition panics.
func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStatus(status)
}

func (t *Task) setStatus(status TaskStatus) {
	if !CanTransition(t.status, status) {
		panic(fmt.Sprintf("execution: task %v cannot move from %v to %v", t, t.status, status))
	}
	t.status = status
	if status == TaskStatusRunning && t.firstRun.IsZero() {
		t.firstRun = clock.Now()
	}
}

// IsReady reports whether the task can be picked.
func (t *Task) IsReady() bool { return t.Status() == TaskStatusReady }

// Stride returns the accumulated pass value.
func (t *Task) Stride() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stride
}

// SetStride updates the pass value.
func (t *Task) SetStride(stride uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stride = stride
}

// Priority returns the scheduling priority.
func (t *Task) Priority() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// SetPriority updates the scheduling priority.
func (t *Task) SetPriority(priority uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = priority
}

// ExitCode returns the exit code once the task has exited.
func (t *Task) ExitCode() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exitCode == nil {
		return 0, false
	}
	return *t.exitCode, true
}

// UserRes returns user resources, nil once released.
func (t *Task) UserRes() *TaskUserRes {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res
}

// TrapCxPPN returns the physical frame of the trap context.
func (t *Task) TrapCxPPN() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trapCxPPN
}

// TrapContext reads the saved user registers.
func (t *Task) TrapContext() (*TrapContext, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.res == nil {
		return nil, fmt.Errorf("task %v: %w", t, ErrZombie)
	}
	return loadTrapContext(t.process.env.Memory, t.trapCxPPN)
}

// SetTrapContext writes the saved user registers.
func (t *Task) SetTrapContext(ctx *TrapContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.res == nil {
		return fmt.Errorf("task %v: %w", t, ErrZombie)
	}
	return storeTrapContext(t.process.env.Memory, t.trapCxPPN, ctx)
}

// UpdateTrapContext applies fn to the saved registers and writes them back.
func (t *Task) UpdateTrapContext(fn func(ctx *TrapContext)) error {
	ctx, err := t.TrapContext()
	if err != nil {
		return err
	}
	fn(ctx)
	return t.SetTrapContext(ctx)
}

// RecordSyscall increments the counter of syscall id.
func (t *Task) RecordSyscall(id int) {
	if id < 0 || id >= MaxSyscallNum {
		return
	}
	t.mu.Lock()
	t.syscalls[id]++
	t.mu.Unlock()
}

// SyscallTimes returns a copy of the syscall counters.
func (t *Task) SyscallTimes() [MaxSyscallNum]uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syscalls
}

// RunningMillis returns milliseconds since the task was first dispatched.
func (t *Task) RunningMillis() uint64 {
	t.mu.Lock()
	start := t.firstRun
	t.mu.Unlock()
	return clock.SinceMillis(start)
}

// rebind points the task at freshly mapped user resources after exec.
func (t *Task) rebind(res *TaskUserRes, ppn uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.res = res
	t.trapCxPPN = ppn
}

// Exit marks the task zombie with code and releases its user stack, trap
// context page and kernel stack. The tid stays reserved until the task is
// reaped.
func (t *Task) Exit(code int) {
	t.mu.Lock()
	t.setStatus(TaskStatusZombie)
	t.exitCode = &code
	res := t.res
	t.res = nil
	kstack := t.kstack
	t.kstack = nil
	t.mu.Unlock()

	if res != nil {
		t.process.WithInner(func(inner *ProcessInner) {
			if inner.Space != nil {
				res.DeallocUserRes(inner.Space)
			}
		})
	}
	if kstack != nil {
		kstack.Release()
	}
}

// Discard releases the tid, user resources and kernel stack of a task that
// was never made runnable.
func (t *Task) Discard() {
	t.mu.Lock()
	if t.status != TaskStatusUninit {
		status := t.status
		t.mu.Unlock()
		panic(fmt.Sprintf("execution: task %v discarded while %v", t, status))
	}
	res := t.res
	t.res = nil
	kstack := t.kstack
	t.kstack = nil
	t.mu.Unlock()

	t.process.WithInner(func(inner *ProcessInner) {
		if res != nil && inner.Space != nil {
			res.DeallocUserRes(inner.Space)
		}
		if inner.LookupTask(t.tid) == t {
			inner.Tasks[t.tid] = nil
		}
		inner.DeallocTid(t.tid)
	})
	if kstack != nil {
		kstack.Release()
	}
}

// StartAt resets the trap context so the thread enters entry on its own user
// stack with a0 set to arg.
func (t *Task) StartAt(entry, arg uint64) error {
	env := t.process.env
	res := t.UserRes()
	kstack := t.KernelStack()
	if res == nil || kstack == nil {
		return fmt.Errorf("task %v: %w", t, ErrZombie)
	}
	ctx := AppInitContext(entry, res.UstackTop(), env.KernelToken, kstack.Top(), env.TrapHandler)
	ctx.X[RegA0] = arg
	return t.SetTrapContext(ctx)
}
