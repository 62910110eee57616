package memory

import (
	"fmt"
	"sync"

	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/service/mm"
)

// Memory is simulated physical memory made of page-sized frames.
type Memory struct {
	mu        sync.RWMutex
	pageSize  uint64
	maxFrames int
	frames    map[uint64][]byte
	ppns      *idgen.Recycler
}

// New creates physical memory; maxFrames <= 0 means unbounded.
func New(pageSize uint64, maxFrames int) *Memory {
	return &Memory{
		pageSize:  pageSize,
		maxFrames: maxFrames,
		frames:    map[uint64][]byte{},
		ppns:      idgen.NewRecycler(),
	}
}

var _ mm.PhysMem = (*Memory)(nil)

// PageSize returns frame size.
func (m *Memory) PageSize() uint64 { return m.pageSize }

// AllocFrame returns the number of a zeroed frame.
func (m *Memory) AllocFrame() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxFrames > 0 && len(m.frames) >= m.maxFrames {
		return 0, mm.ErrOutOfMemory
	}
	ppn := uint64(m.ppns.Alloc())
	m.frames[ppn] = make([]byte, m.pageSize)
	return ppn, nil
}

// FreeFrame returns a frame to the pool.
func (m *Memory) FreeFrame(ppn uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.frames[ppn]; !ok {
		panic(fmt.Sprintf("memory: frame %d is not allocated", ppn))
	}
	delete(m.frames, ppn)
	m.ppns.Dealloc(int(ppn))
}

// InUse returns the number of allocated frames.
func (m *Memory) InUse() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

func (m *Memory) locate(pa uint64, size int) ([]byte, error) {
	ppn, offset := pa/m.pageSize, pa%m.pageSize
	frame, ok := m.frames[ppn]
	if !ok {
		return nil, fmt.Errorf("memory: frame %d is not allocated", ppn)
	}
	if offset+uint64(size) > m.pageSize {
		return nil, fmt.Errorf("memory: access at %#x of %d bytes crosses frame boundary", pa, size)
	}
	return frame[offset : offset+uint64(size)], nil
}

// Read copies len(p) bytes at physical address pa.
func (m *Memory) Read(pa uint64, p []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, err := m.locate(pa, len(p))
	if err != nil {
		return err
	}
	copy(p, src)
	return nil
}

// Write copies p to physical address pa.
func (m *Memory) Write(pa uint64, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, err := m.locate(pa, len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

func (m *Memory) copyFrame(dst, src uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.frames[dst], m.frames[src])
}
