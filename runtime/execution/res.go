package execution

import (
	"fmt"

	"github.com/viant/kproc/service/mm"
)

// TaskUserRes is the user-space footprint of a thread: its user stack and
// trap context page, both derived from the tid.
type TaskUserRes struct {
	Tid        int
	UstackBase uint64
	layout     mm.Layout
}

func newTaskUserRes(tid int, ustackBase uint64, layout mm.Layout) *TaskUserRes {
	return &TaskUserRes{Tid: tid, UstackBase: ustackBase, layout: layout}
}

// UstackBottom returns the lowest address of the user stack.
func (r *TaskUserRes) UstackBottom() uint64 {
	return r.layout.UserStackBottom(r.UstackBase, r.Tid)
}

// UstackTop returns the initial user stack pointer.
func (r *TaskUserRes) UstackTop() uint64 {
	return r.UstackBottom() + r.layout.UserStackSize
}

// TrapCxUserVA returns the trap context page address.
func (r *TaskUserRes) TrapCxUserVA() uint64 {
	return r.layout.TrapContextBottom(r.Tid)
}

// AllocUserRes maps user stack and trap context page into space.
func (r *TaskUserRes) AllocUserRes(space mm.Space) error {
	bottom := r.UstackBottom()
	if !space.MapRegion(bottom, bottom+r.layout.UserStackSize, mm.PermR|mm.PermW|mm.PermU) {
		return fmt.Errorf("failed to map user stack of tid %d at %#x", r.Tid, bottom)
	}
	trapCx := r.TrapCxUserVA()
	if !space.MapRegion(trapCx, trapCx+r.layout.PageSize, mm.PermR|mm.PermW) {
		space.UnmapRegion(bottom, bottom+r.layout.UserStackSize)
		return fmt.Errorf("failed to map trap context of tid %d at %#x", r.Tid, trapCx)
	}
	return nil
}

// DeallocUserRes unmaps both regions from space.
func (r *TaskUserRes) DeallocUserRes(space mm.Space) {
	bottom := r.UstackBottom()
	space.UnmapRegion(bottom, bottom+r.layout.UserStackSize)
	trapCx := r.TrapCxUserVA()
	space.UnmapRegion(trapCx, trapCx+r.layout.PageSize)
}

// TrapCxPPN resolves the physical frame of the trap context page.
func (r *TaskUserRes) TrapCxPPN(space mm.Space, pageSize uint64) (uint64, error) {
	pa, ok := space.Translate(r.TrapCxUserVA())
	if !ok {
		return 0, fmt.Errorf("trap context of tid %d: %w", r.Tid, mm.ErrUnmapped)
	}
	return pa / pageSize, nil
}
