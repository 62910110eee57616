package execution

import (
	"fmt"
	"sync"

	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/deadlock"
	"github.com/viant/kproc/service/fs"
	"github.com/viant/kproc/service/mm"
	"github.com/viant/kproc/service/primitive"
)

// NoParent marks a process without a parent.
const NoParent = -1

// CondWaiter is a task parked on a condition variable together with the
// mutex it must re-acquire once signalled.
type CondWaiter struct {
	Task  *Task
	Mutex int
}

// ProcessInner is the mutable part of a process, reachable only through
// Process.WithInner.
type ProcessInner struct {
	IsZombie  bool
	Space     mm.Space
	ParentPID int
	Children  []*Process
	ExitCode  int
	FdTable   []fs.File
	Signals   SignalFlags
	Tasks     []*Task
	TaskIDs   *idgen.Recycler

	// HeapBottom is fixed above the highest thread stack; Brk moves with sbrk.
	HeapBottom uint64
	Brk        uint64

	Mutexes           []*primitive.Mutex[*Task]
	Semaphores        []*primitive.Semaphore[*Task]
	Condvars          []*primitive.Condvar[CondWaiter]
	MutexDetector     *deadlock.Detector
	SemaphoreDetector *deadlock.Detector
}

// Process is a process control block.
type Process struct {
	pid   int
	env   *Env
	mu    sync.Mutex
	inner ProcessInner
}

func newProcess(pid int, env *Env, space mm.Space, options ...Option) *Process {
	p := &Process{
		pid: pid,
		env: env,
		inner: ProcessInner{
			Space:             space,
			ParentPID:         NoParent,
			TaskIDs:           idgen.NewRecycler(),
			MutexDetector:     deadlock.New(env.Bounds),
			SemaphoreDetector: deadlock.New(env.Bounds),
		},
	}
	for _, option := range options {
		option(&p.inner)
	}
	return p
}

// New loads image into a fresh address space and creates the process with
// its main thread. The thread is left Uninit; the caller registers the
// process and enqueues the thread.
func New(env *Env, image *model.Image, args []string, options ...Option) (*Process, *Task, error) {
	if err := checkArgs(env.Layout, args); err != nil {
		return nil, nil, err
	}
	space, ustackBase, entry, err := env.Loader.Load(image)
	if err != nil {
		return nil, nil, err
	}
	heap := env.HeapBottom(ustackBase)
	p := newProcess(env.PIDs.Alloc(), env, space, append([]Option{withHeap(heap, heap)}, options...)...)
	task, err := NewTask(p, ustackBase, true)
	if err != nil {
		space.Release()
		env.PIDs.Dealloc(p.pid)
		return nil, nil, err
	}
	p.WithInner(func(inner *ProcessInner) {
		inner.setTask(task)
	})
	if _, err = task.initUserContext(entry, args, len(args) > 0); err != nil {
		task.Discard()
		space.Release()
		env.PIDs.Dealloc(p.pid)
		return nil, nil, err
	}
	return p, task, nil
}

// PID returns the process id.
func (p *Process) PID() int { return p.pid }

// WithInner runs fn with exclusive access to the mutable state. The lock is
// released when fn returns or panics.
func (p *Process) WithInner(fn func(inner *ProcessInner)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.inner)
}

// IsZombie reports whether the process has exited.
func (p *Process) IsZombie() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.IsZombie
}

// ParentPID returns the parent pid.
func (p *Process) ParentPID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.ParentPID
}

// Token returns the page table token, 0 after the address space is gone.
func (p *Process) Token() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.Token()
}

// Exec replaces the address space with image and restarts the only thread
// at the image entry with args on its stack. It returns argc.
func (p *Process) Exec(image *model.Image, args []string) (int, error) {
	if err := checkArgs(p.env.Layout, args); err != nil {
		return -1, err
	}
	var err error
	p.WithInner(func(inner *ProcessInner) {
		if inner.IsZombie {
			err = ErrZombie
		} else if !inner.SingleThreaded() {
			err = ErrMultiThreaded
		}
	})
	if err != nil {
		return -1, err
	}
	space, ustackBase, entry, err := p.env.Loader.Load(image)
	if err != nil {
		return -1, err
	}
	var task *Task
	p.WithInner(func(inner *ProcessInner) {
		task = inner.Task(0)
		res := newTaskUserRes(task.tid, ustackBase, p.env.Layout)
		if err = res.AllocUserRes(space); err != nil {
			return
		}
		var ppn uint64
		if ppn, err = res.TrapCxPPN(space, p.env.Layout.PageSize); err != nil {
			return
		}
		old := inner.Space
		inner.Space = space
		inner.HeapBottom = p.env.HeapBottom(ustackBase)
		inner.Brk = inner.HeapBottom
		task.rebind(res, ppn)
		old.Release()
	})
	if err != nil {
		space.Release()
		return -1, err
	}
	return task.initUserContext(entry, args, true)
}

// Fork duplicates a single-threaded process. The child's only thread reuses
// the parent's user stack and trap context layout, with a0 cleared so the
// child observes a zero return value. The child is linked into the parent's
// children before the call returns; its thread is left Uninit.
func (p *Process) Fork() (*Process, *Task, error) {
	var parent *Task
	var space mm.Space
	var files []fs.File
	var heapBottom, brk uint64
	var err error
	p.WithInner(func(inner *ProcessInner) {
		if inner.IsZombie {
			err = ErrZombie
			return
		}
		if !inner.SingleThreaded() {
			err = ErrMultiThreaded
			return
		}
		parent = inner.Task(0)
		files = inner.FdTable
		heapBottom, brk = inner.HeapBottom, inner.Brk
		space, err = inner.Space.Clone()
	})
	if err != nil {
		return nil, nil, err
	}
	res := parent.UserRes()
	if res == nil {
		space.Release()
		return nil, nil, fmt.Errorf("fork of process %d: %w", p.pid, ErrZombie)
	}
	child := newProcess(p.env.PIDs.Alloc(), p.env, space, WithParent(p.pid), WithFdTable(files), withHeap(heapBottom, brk))
	task, err := NewTask(child, res.UstackBase, false)
	if err != nil {
		space.Release()
		p.env.PIDs.Dealloc(child.pid)
		return nil, nil, err
	}
	if err = task.UpdateTrapContext(func(ctx *TrapContext) {
		ctx.KernelSp = task.kstack.Top()
		ctx.X[RegA0] = 0
	}); err != nil {
		return nil, nil, err
	}
	child.WithInner(func(inner *ProcessInner) {
		inner.setTask(task)
	})
	p.WithInner(func(inner *ProcessInner) {
		inner.Children = append(inner.Children, child)
	})
	return child, task, nil
}

// Abandon disposes of a process whose main thread never became runnable:
// the thread is discarded, the address space released and the pid recycled.
func (p *Process) Abandon(task *Task) {
	task.Discard()
	p.Terminate(-1)
	p.Reap()
}

// Reap releases the pid of an exited process. Every thread must be zombie.
func (p *Process) Reap() {
	p.WithInner(func(inner *ProcessInner) {
		if !inner.IsZombie {
			panic(fmt.Sprintf("execution: process %d reaped while alive", p.pid))
		}
		for _, task := range inner.Tasks {
			if task != nil && task.Status() != TaskStatusZombie {
				panic(fmt.Sprintf("execution: process %d reaped with live task %v", p.pid, task))
			}
		}
		inner.Tasks = nil
	})
	p.env.PIDs.Dealloc(p.pid)
}

// Terminate marks the process zombie with code and releases its descriptor
// table, synchronisation objects and address space. It returns the children
// that must be handed to a new parent.
func (p *Process) Terminate(code int) []*Process {
	var orphans []*Process
	p.WithInner(func(inner *ProcessInner) {
		inner.IsZombie = true
		inner.ExitCode = code
		orphans = inner.Children
		inner.Children = nil
		inner.FdTable = nil
		inner.Mutexes = nil
		inner.Semaphores = nil
		inner.Condvars = nil
		if inner.Space != nil {
			inner.Space.Release()
			inner.Space = nil
		}
	})
	return orphans
}

// Adopt appends orphans to the children of p.
func (p *Process) Adopt(orphans []*Process) {
	if len(orphans) == 0 {
		return
	}
	p.WithInner(func(inner *ProcessInner) {
		inner.Children = append(inner.Children, orphans...)
	})
	for _, orphan := range orphans {
		orphan.WithInner(func(inner *ProcessInner) {
			inner.ParentPID = p.pid
		})
	}
}

// Token returns the page table token, 0 after the address space is gone.
func (in *ProcessInner) Token() uint64 {
	if in.Space == nil {
		return 0
	}
	return in.Space.Token()
}

// AllocFd returns the lowest free descriptor slot, growing the table when
// every slot is taken.
func (in *ProcessInner) AllocFd() int {
	for fd, file := range in.FdTable {
		if file == nil {
			return fd
		}
	}
	in.FdTable = append(in.FdTable, nil)
	return len(in.FdTable) - 1
}

// AllocTid reserves a thread id.
func (in *ProcessInner) AllocTid() int { return in.TaskIDs.Alloc() }

// DeallocTid releases a thread id.
func (in *ProcessInner) DeallocTid(tid int) { in.TaskIDs.Dealloc(tid) }

// ThreadCount returns the number of thread slots, reaped ones included.
func (in *ProcessInner) ThreadCount() int { return len(in.Tasks) }

// SingleThreaded reports whether the main thread is the only live thread.
// Reaped slots do not count.
func (in *ProcessInner) SingleThreaded() bool {
	main := in.LookupTask(0)
	return main != nil && main.Status() != TaskStatusZombie && in.LiveThreads() == 1
}

// LiveThreads returns the number of threads that have not exited.
func (in *ProcessInner) LiveThreads() int {
	count := 0
	for _, task := range in.Tasks {
		if task != nil && task.Status() != TaskStatusZombie {
			count++
		}
	}
	return count
}

// Task returns thread tid; an empty slot is a programming error.
func (in *ProcessInner) Task(tid int) *Task {
	if tid < 0 || tid >= len(in.Tasks) || in.Tasks[tid] == nil {
		panic(fmt.Sprintf("execution: no task with tid %d", tid))
	}
	return in.Tasks[tid]
}

// LookupTask returns thread tid or nil.
func (in *ProcessInner) LookupTask(tid int) *Task {
	if tid < 0 || tid >= len(in.Tasks) {
		return nil
	}
	return in.Tasks[tid]
}

// ReapTask drops the slot of an exited thread and recycles its tid.
func (in *ProcessInner) ReapTask(tid int) {
	task := in.Task(tid)
	if task.Status() != TaskStatusZombie {
		panic(fmt.Sprintf("execution: task %v reaped while alive", task))
	}
	in.Tasks[tid] = nil
	in.DeallocTid(tid)
}

func (in *ProcessInner) setTask(task *Task) {
	for len(in.Tasks) <= task.tid {
		in.Tasks = append(in.Tasks, nil)
	}
	in.Tasks[task.tid] = task
}

// AddTask installs a newly created thread.
func (in *ProcessInner) AddTask(task *Task) { in.setTask(task) }

// ChangeBrk moves the program break by delta, mapping or unmapping whole
// pages between the old and new break. It returns the old break; the break
// never drops below HeapBottom.
func (in *ProcessInner) ChangeBrk(layout mm.Layout, delta int64) (uint64, bool) {
	if in.Space == nil {
		return 0, false
	}
	old := in.Brk
	var brk uint64
	if delta < 0 {
		shrink := uint64(-delta)
		if shrink > old-in.HeapBottom {
			return 0, false
		}
		brk = old - shrink
	} else {
		brk = old + uint64(delta)
		if brk < old {
			return 0, false
		}
	}
	oldEnd, newEnd := layout.PageCeil(old), layout.PageCeil(brk)
	switch {
	case newEnd > oldEnd:
		if !in.Space.MapRegion(oldEnd, newEnd, mm.PermR|mm.PermW|mm.PermU) {
			return 0, false
		}
	case newEnd < oldEnd:
		if !in.Space.UnmapRegion(newEnd, oldEnd) {
			return 0, false
		}
	}
	in.Brk = brk
	return old, true
}

// RemoveChild unlinks child; it reports whether child was linked.
func (in *ProcessInner) RemoveChild(child *Process) bool {
	for i, candidate := range in.Children {
		if candidate == child {
			in.Children = append(in.Children[:i], in.Children[i+1:]...)
			return true
		}
	}
	return false
}

func checkArgs(layout mm.Layout, args []string) error {
	size := uint64(len(args)+1) * regSize
	for _, arg := range args {
		size += uint64(len(arg)) + 1
	}
	size += regSize
	if size > layout.UserStackSize {
		return fmt.Errorf("%w: %d bytes", ErrArgsTooLong, size)
	}
	return nil
}

// initUserContext resets the trap context to start at entry, optionally
// placing args on the user stack first. It returns argc.
func (t *Task) initUserContext(entry uint64, args []string, push bool) (int, error) {
	env := t.process.env
	sp := t.UserRes().UstackTop()
	var argvBase uint64
	var err error
	if push {
		t.process.WithInner(func(inner *ProcessInner) {
			sp, argvBase, err = pushArgs(inner.Space, env.Memory, sp, args)
		})
	}
	if err != nil {
		return -1, err
	}
	ctx := AppInitContext(entry, sp, env.KernelToken, t.KernelStack().Top(), env.TrapHandler)
	ctx.X[RegA0] = uint64(len(args))
	ctx.X[RegA1] = argvBase
	if err = t.SetTrapContext(ctx); err != nil {
		return -1, err
	}
	return len(args), nil
}

// pushArgs copies args below top, highest address first, each NUL
// terminated, then aligns to the word size and writes the NUL terminated
// argv vector below them. It returns the new stack pointer, which is also
// the argv base.
func pushArgs(space mm.Space, mem mm.PhysMem, top uint64, args []string) (uint64, uint64, error) {
	sp := top
	addrs := make([]uint64, len(args))
	for i, arg := range args {
		sp -= uint64(len(arg)) + 1
		if err := mm.WriteCString(space, mem, sp, arg); err != nil {
			return 0, 0, err
		}
		addrs[i] = sp
	}
	sp -= sp % regSize
	sp -= uint64(len(args)+1) * regSize
	for i, addr := range addrs {
		if err := mm.WriteUint64(space, mem, sp+uint64(i)*regSize, addr); err != nil {
			return 0, 0, err
		}
	}
	if err := mm.WriteUint64(space, mem, sp+uint64(len(args))*regSize, 0); err != nil {
		return 0, 0, err
	}
	return sp, sp, nil
}
