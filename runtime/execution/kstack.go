package execution

import "sync"

// KernelStack is a per-task kernel stack identified by a recycled id.
type KernelStack struct {
	id   int
	env  *Env
	once sync.Once
}

// NewKernelStack allocates a kernel stack id.
func NewKernelStack(env *Env) *KernelStack {
	return &KernelStack{id: env.KernelStacks.Alloc(), env: env}
}

// ID returns the kernel stack id.
func (k *KernelStack) ID() int { return k.id }

// Top returns the initial kernel stack pointer.
func (k *KernelStack) Top() uint64 {
	_, top := k.env.Layout.KernelStackPosition(k.id)
	return top
}

// Release recycles the id; later calls are no-ops.
func (k *KernelStack) Release() {
	k.once.Do(func() {
		k.env.KernelStacks.Dealloc(k.id)
	})
}
