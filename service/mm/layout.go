package mm

import (
	"fmt"
	"math"
)

// Layout describes the fixed virtual memory layout shared by every address
// space.
type Layout struct {
	PageSize        uint64 `json:"pageSize" yaml:"pageSize"`
	UserStackSize   uint64 `json:"userStackSize" yaml:"userStackSize"`
	KernelStackSize uint64 `json:"kernelStackSize" yaml:"kernelStackSize"`
}

// DefaultLayout returns a 4KiB page layout with 8KiB stacks.
func DefaultLayout() Layout {
	return Layout{
		PageSize:        4096,
		UserStackSize:   4096 * 2,
		KernelStackSize: 4096 * 2,
	}
}

// Validate checks that sizes are positive page multiples.
func (l Layout) Validate() error {
	if l.PageSize == 0 || l.PageSize&(l.PageSize-1) != 0 {
		return fmt.Errorf("mm: pageSize must be a power of two, got %d", l.PageSize)
	}
	if l.UserStackSize == 0 || l.UserStackSize%l.PageSize != 0 {
		return fmt.Errorf("mm: userStackSize must be a positive multiple of pageSize")
	}
	if l.KernelStackSize == 0 || l.KernelStackSize%l.PageSize != 0 {
		return fmt.Errorf("mm: kernelStackSize must be a positive multiple of pageSize")
	}
	return nil
}

// Trampoline is the highest page of every address space.
func (l Layout) Trampoline() uint64 {
	return math.MaxUint64 - l.PageSize + 1
}

// TrapContextBase is the page right below the trampoline.
func (l Layout) TrapContextBase() uint64 {
	return l.Trampoline() - l.PageSize
}

// TrapContextBottom returns the trap context page of thread tid.
func (l Layout) TrapContextBottom(tid int) uint64 {
	return l.TrapContextBase() - uint64(tid)*l.PageSize
}

// UserStackBottom returns the lowest address of thread tid's user stack; a
// guard page separates neighbouring stacks.
func (l Layout) UserStackBottom(base uint64, tid int) uint64 {
	return base + uint64(tid)*(l.PageSize+l.UserStackSize)
}

// KernelStackPosition returns bottom and top of kernel stack id in the
// kernel address space.
func (l Layout) KernelStackPosition(id int) (bottom, top uint64) {
	top = l.Trampoline() - uint64(id)*(l.KernelStackSize+l.PageSize)
	bottom = top - l.KernelStackSize
	return bottom, top
}

// PageFloor rounds va down to a page boundary.
func (l Layout) PageFloor(va uint64) uint64 {
	return va &^ (l.PageSize - 1)
}

// PageCeil rounds va up to a page boundary.
func (l Layout) PageCeil(va uint64) uint64 {
	return (va + l.PageSize - 1) &^ (l.PageSize - 1)
}
