package execution

import (
	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/service/deadlock"
	"github.com/viant/kproc/service/mm"
)

// Env bundles kernel-wide collaborators shared by every process.
type Env struct {
	Layout          mm.Layout
	Memory          mm.PhysMem
	Loader          mm.Loader
	PIDs            *idgen.Recycler
	KernelStacks    *idgen.Recycler
	KernelToken     uint64
	TrapHandler     uint64
	TrapReturn      uint64
	Bounds          deadlock.Bounds
	DefaultPriority uint64
}

// HeapBottom returns the page above the stack slot of the last thread a
// process may hold.
func (e *Env) HeapBottom(ustackBase uint64) uint64 {
	return e.Layout.UserStackBottom(ustackBase, e.Bounds.MaxThreads)
}
