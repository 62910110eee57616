package idgen

import (
	"container/heap"
	"fmt"
	"sync"
)

// Recycler hands out small non-negative integers. Released ids are reused
// before the range is extended, smallest first.
type Recycler struct {
	mu       sync.Mutex
	next     int
	recycled intHeap
	free     map[int]bool
}

// NewRecycler creates an empty allocator whose first id is 0.
func NewRecycler() *Recycler {
	return &Recycler{free: map[int]bool{}}
}

// Alloc returns the smallest recycled id, or extends the range.
func (r *Recycler) Alloc() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recycled.Len() > 0 {
		id := heap.Pop(&r.recycled).(int)
		delete(r.free, id)
		return id
	}
	id := r.next
	r.next++
	return id
}

// Peek returns the id the next Alloc would hand out.
func (r *Recycler) Peek() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recycled.Len() > 0 {
		return r.recycled[0]
	}
	return r.next
}

// Dealloc returns id to the pool. Releasing an id that was never handed
// out, or releasing it twice, is a programming error and panics.
func (r *Recycler) Dealloc(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= r.next {
		panic(fmt.Sprintf("idgen: id %d has not been allocated", id))
	}
	if r.free[id] {
		panic(fmt.Sprintf("idgen: id %d has already been released", id))
	}
	r.free[id] = true
	heap.Push(&r.recycled, id)
}

// InUse returns the number of live ids.
func (r *Recycler) InUse() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next - r.recycled.Len()
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
