package kernel

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/runtime/execution"
	procdao "github.com/viant/kproc/service/dao/process/memory"
	"github.com/viant/kproc/service/mm"
)

// refusingTable rejects new entries while refuse is set.
type refusingTable struct {
	*procdao.Service
	refuse bool
}

func (r *refusingTable) Save(ctx context.Context, p *execution.Process) error {
	if r.refuse {
		return errors.New("process table full")
	}
	return r.Service.Save(ctx, p)
}

func TestService_RegisterFailure(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		description string
		create      func(k *Service) int
	}{
		{description: "spawn", create: func(k *Service) int { return k.Spawn(ctx, "child") }},
		{description: "fork", create: func(k *Service) int { return k.Fork(ctx) }},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			table := &refusingTable{Service: procdao.New()}
			k := newKernel(t, WithProcessDAO(table))
			initProc := k.InitProcess()
			frames := k.Memory().InUse()

			table.refuse = true
			assert.Equal(t, ResultError, tc.create(k))
			initProc.WithInner(func(inner *execution.ProcessInner) {
				assert.Empty(t, inner.Children)
			})
			assert.Equal(t, ResultError, k.Wait(ctx, -1, dataVA), "no child left behind")
			assert.Equal(t, 0, k.ReadyLen())
			assert.Equal(t, frames, k.Memory().InUse())

			table.refuse = false
			assert.Equal(t, 1, tc.create(k), "pid is recycled")
		})
	}
}

func TestService_Wait(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	initProc := k.InitProcess()
	initTask := k.Current()

	assert.Equal(t, ResultError, k.Wait(ctx, -1, dataVA), "no children")

	pid := k.Spawn(ctx, "child")
	require.Equal(t, 1, pid)
	assert.Equal(t, ResultNotExited, k.Wait(ctx, -1, dataVA))
	assert.Equal(t, ResultNotExited, k.Wait(ctx, pid, dataVA))
	assert.Equal(t, ResultError, k.Wait(ctx, 42, dataVA), "not a child")

	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 0, child.ParentPID())
	childTask := taskOf(child, 0)
	switchTo(t, k, childTask)
	assert.Equal(t, pid, k.GetPid(ctx))
	k.Exit(ctx, 7)
	assert.True(t, child.IsZombie())
	assert.Equal(t, 1, k.Progress().ZombieTasks)

	switchTo(t, k, initTask)
	assert.Equal(t, ResultError, k.Wait(ctx, pid, 0x7000_0000), "unmapped exit code pointer")
	assert.Equal(t, pid, k.Wait(ctx, -1, dataVA))
	assert.Equal(t, []byte{7, 0, 0, 0}, userRead(t, k, initProc, dataVA, 4))
	assert.Equal(t, ResultError, k.Wait(ctx, -1, dataVA), "child already reaped")

	_, err = k.Processes().Load(ctx, pid)
	assert.Error(t, err)
	counters := k.Progress()
	assert.Equal(t, 0, counters.ZombieTasks)
	assert.Equal(t, 1, counters.ReapedTasks)

	assert.Equal(t, 1, k.Spawn(ctx, "child"), "pid is recycled")
}

func TestService_WaitDiscardsCode(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	initTask := k.Current()
	pid := k.Spawn(ctx, "child")
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	switchTo(t, k, taskOf(child, 0))
	k.Exit(ctx, -3)
	switchTo(t, k, initTask)
	assert.Equal(t, pid, k.Wait(ctx, pid, 0))
}

func TestService_Fork(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	parentTask := k.Current()
	initProc := k.InitProcess()
	userWrite(t, k, initProc, dataVA, []byte("forked"))

	pid := k.Fork(ctx)
	require.Equal(t, 1, pid)
	assert.Equal(t, pid, a0(t, parentTask))

	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, initProc.PID(), child.ParentPID())
	childTask := taskOf(child, 0)
	require.NotNil(t, childTask)
	assert.Equal(t, execution.TaskStatusReady, childTask.Status())
	assert.Equal(t, 0, a0(t, childTask))
	assert.Equal(t, []byte("forked"), userRead(t, k, child, dataVA, 6))

	userWrite(t, k, child, dataVA, []byte("child!"))
	assert.Equal(t, []byte("forked"), userRead(t, k, initProc, dataVA, 6))

	switchTo(t, k, childTask)
	assert.Equal(t, pid, k.GetPid(ctx))
}

func TestService_ForkMultiThreaded(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	initTask := k.Current()
	pid := k.Spawn(ctx, "child")
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	childTask := taskOf(child, 0)
	switchTo(t, k, childTask)
	require.Equal(t, 1, k.ThreadCreate(ctx, 0x10000, 0))

	assert.Equal(t, ResultError, k.Fork(ctx))
	assert.True(t, child.IsZombie())
	assert.Equal(t, execution.TaskStatusZombie, childTask.Status())
	assert.Equal(t, execution.TaskStatusZombie, taskOf(child, 1).Status())

	switchTo(t, k, initTask)
	assert.Equal(t, pid, k.Wait(ctx, pid, dataVA))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, userRead(t, k, k.InitProcess(), dataVA, 4))
}

func TestService_Exec(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		description string
		path        string
		args        []string
		expect      int
	}{
		{description: "with args", path: "child", args: []string{"child", "-v", "x y"}, expect: 3},
		{description: "without args", path: "child", expect: 0},
		{description: "missing image", path: "nope", expect: ResultError},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			k := newKernel(t)
			task := k.Current()
			process := task.Process()
			assert.Equal(t, tc.expect, k.Exec(ctx, tc.path, tc.args))
			if tc.expect < 0 {
				assert.Equal(t, []byte("hello"), userRead(t, k, process, dataVA, 5))
				return
			}
			assert.Equal(t, []byte("child"), userRead(t, k, process, dataVA, 5))
			cx, err := task.TrapContext()
			require.NoError(t, err)
			assert.EqualValues(t, 0x10000, cx.Sepc)
			assert.EqualValues(t, tc.expect, cx.X[execution.RegA0])
			argv := cx.X[execution.RegA1]
			process.WithInner(func(inner *execution.ProcessInner) {
				for i, arg := range tc.args {
					ptr, err := mm.ReadUint64(inner.Space, k.Memory(), argv+uint64(i)*8)
					require.NoError(t, err)
					actual, err := mm.ReadCString(inner.Space, k.Memory(), ptr, 64)
					require.NoError(t, err)
					assert.Equal(t, arg, actual)
				}
				last, err := mm.ReadUint64(inner.Space, k.Memory(), argv+uint64(len(tc.args))*8)
				require.NoError(t, err)
				assert.Zero(t, last)
			})
		})
	}
}

func TestService_ExecCommand(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	assert.Equal(t, 3, k.ExecCommand(ctx, `child one "two words"`))
	assert.Equal(t, ResultError, k.ExecCommand(ctx, "   "))
}

func TestService_SpawnCommand(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	pid := k.SpawnCommand(ctx, `child 'a b'`)
	require.Equal(t, 1, pid)
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 2, a0(t, taskOf(child, 0)))
	assert.Equal(t, ResultError, k.SpawnCommand(ctx, "missing"))
	assert.Equal(t, ResultError, k.Spawn(ctx, "missing"))
}

func TestService_Orphans(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	initTask := k.Current()
	pid := k.Spawn(ctx, "child")
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	switchTo(t, k, taskOf(child, 0))
	grandchild := k.Spawn(ctx, "child")
	require.Equal(t, 2, grandchild)
	k.Exit(ctx, 0)

	orphan, err := k.Processes().Load(ctx, grandchild)
	require.NoError(t, err)
	assert.Equal(t, 0, orphan.ParentPID())

	switchTo(t, k, initTask)
	assert.Equal(t, pid, k.Wait(ctx, pid, 0))
	assert.Equal(t, ResultNotExited, k.Wait(ctx, grandchild, 0))
}

func TestService_InitExitHalts(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	k.Spawn(ctx, "child")
	k.Exit(ctx, 0)
	assert.True(t, k.Halted())
	assert.Nil(t, k.Current())
	assert.Equal(t, ResultError, k.GetPid(ctx))
}

func TestService_Yield(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	initTask := k.Current()
	assert.Equal(t, ResultOK, k.Yield(ctx))
	assert.Same(t, initTask, k.Current(), "only runnable task")

	pid := k.Spawn(ctx, "child")
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, ResultOK, k.Yield(ctx))
	assert.Same(t, taskOf(child, 0), k.Current())
	assert.Equal(t, execution.TaskStatusReady, initTask.Status())
}

func TestService_SetPriority(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	testCases := []struct {
		priority int64
		expect   int
	}{
		{priority: -5, expect: ResultError},
		{priority: 0, expect: ResultError},
		{priority: 1, expect: ResultError},
		{priority: 2, expect: 2},
		{priority: 1 << 20, expect: 1 << 20},
		{priority: 1<<20 + 1, expect: ResultError},
		{priority: 1 << 40, expect: ResultError},
		{priority: 1000, expect: 1000},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expect, k.SetPriority(ctx, tc.priority))
	}
	assert.EqualValues(t, 1000, k.Current().Priority())
}

func TestService_SetPriorityKeepsSharing(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	require.Greater(t, k.Spawn(ctx, "child"), 0)
	assert.Equal(t, ResultError, k.SetPriority(ctx, 1<<40))

	initProc := k.InitProcess()
	dispatched := 0
	for i := 0; i < 100; i++ {
		k.Yield(ctx)
		if k.Current().Process() == initProc {
			dispatched++
		}
	}
	assert.Less(t, dispatched, 60)
	assert.Greater(t, dispatched, 40)
}

func TestService_GetTime(t *testing.T) {
	ctx := context.Background()
	prev := clock.NowFunc
	defer func() { clock.NowFunc = prev }()
	clock.NowFunc = func() time.Time { return time.Unix(1700000000, 250_000_000) }

	k := newKernel(t)
	assert.Equal(t, ResultOK, k.GetTime(ctx, dataVA))
	data := userRead(t, k, k.InitProcess(), dataVA, 16)
	assert.EqualValues(t, 1700000000, binary.LittleEndian.Uint64(data))
	assert.EqualValues(t, 250_000, binary.LittleEndian.Uint64(data[8:]))
	assert.Equal(t, ResultError, k.GetTime(ctx, 0x7000_0000))
}

func TestService_TaskInfo(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	k.GetPid(ctx)
	k.GetPid(ctx)
	assert.Equal(t, ResultOK, k.TaskInfo(ctx, dataVA))
	data := userRead(t, k, k.InitProcess(), dataVA, TaskInfoSize)
	assert.EqualValues(t, execution.TaskStatusRunning, binary.LittleEndian.Uint32(data))
	times := data[taskInfoTimesOffset:]
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(times[SysGetPid*4:]))
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(times[SysTaskInfo*4:]))
	assert.Equal(t, ResultError, k.TaskInfo(ctx, 0x7000_0000))
}

func TestService_Mmap(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	testCases := []struct {
		description string
		start       uint64
		length      uint64
		port        uint64
		expect      int
	}{
		{description: "map", start: 0x20000, length: 0x2000, port: 0x3, expect: ResultOK},
		{description: "overlap", start: 0x21000, length: 0x1000, port: 0x1, expect: ResultError},
		{description: "unaligned", start: 0x30001, length: 0x1000, port: 0x1, expect: ResultError},
		{description: "no permission", start: 0x30000, length: 0x1000, port: 0, expect: ResultError},
		{description: "extra bits", start: 0x30000, length: 0x1000, port: 0x9, expect: ResultError},
		{description: "zero length", start: 0x30000, length: 0, port: 0x1, expect: ResultError},
		{description: "partial page", start: 0x30000, length: 10, port: 0x7, expect: ResultOK},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, k.Mmap(ctx, tc.start, tc.length, tc.port))
		})
	}
	userWrite(t, k, k.InitProcess(), 0x21ff0, []byte("mapped"))

	assert.Equal(t, ResultOK, k.Munmap(ctx, 0x20000, 0x2000))
	assert.Equal(t, ResultError, k.Munmap(ctx, 0x20000, 0x1000))
	assert.Equal(t, ResultError, k.Munmap(ctx, 0x40000, 0x1000))
}

func TestService_Sbrk(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	initProc := k.InitProcess()
	var heap uint64
	initProc.WithInner(func(inner *execution.ProcessInner) {
		heap = inner.HeapBottom
		assert.Equal(t, heap, inner.Brk)
	})
	require.NotZero(t, heap)

	testCases := []struct {
		description string
		size        int64
		expect      int
	}{
		{description: "query", size: 0, expect: int(heap)},
		{description: "below heap bottom", size: -1, expect: ResultError},
		{description: "grow", size: 100, expect: int(heap)},
		{description: "grow across pages", size: 5000, expect: int(heap) + 100},
		{description: "shrink too far", size: -6000, expect: ResultError},
		{description: "shrink", size: -5000, expect: int(heap) + 5100},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, k.Sbrk(ctx, tc.size))
		})
	}
	userWrite(t, k, initProc, heap+90, []byte("heap"))
	assert.Equal(t, []byte("heap"), userRead(t, k, initProc, heap+90, 4))
	initProc.WithInner(func(inner *execution.ProcessInner) {
		_, ok := inner.Space.Translate(heap + 4096)
		assert.False(t, ok, "second heap page unmapped by shrink")
	})

	pid := k.Fork(ctx)
	require.Greater(t, pid, 0)
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)
	child.WithInner(func(inner *execution.ProcessInner) {
		assert.Equal(t, heap+100, inner.Brk)
	})
	assert.Equal(t, []byte("heap"), userRead(t, k, child, heap+90, 4))

	assert.Equal(t, 0, k.Exec(ctx, "child", nil))
	initProc.WithInner(func(inner *execution.ProcessInner) {
		assert.Equal(t, inner.HeapBottom, inner.Brk)
	})
	assert.Equal(t, ResultError, k.Syscall(ctx, SysSbrk, [3]uint64{uint64(0xffffffff)}))
}

func TestService_Kill(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)
	pid := k.Spawn(ctx, "child")
	child, err := k.Processes().Load(ctx, pid)
	require.NoError(t, err)

	assert.Equal(t, ResultOK, k.Kill(ctx, pid, 9))
	assert.Equal(t, ResultError, k.Kill(ctx, pid, 0))
	assert.Equal(t, ResultError, k.Kill(ctx, pid, execution.MaxSignal+1))
	assert.Equal(t, ResultError, k.Kill(ctx, 99, 9))
	child.WithInner(func(inner *execution.ProcessInner) {
		assert.True(t, inner.Signals.Has(9))
		assert.False(t, inner.Signals.Has(2))
	})
}
