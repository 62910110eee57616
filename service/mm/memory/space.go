package memory

import (
	"sort"
	"sync"

	"github.com/viant/kproc/service/mm"
)

type pte struct {
	ppn  uint64
	perm mm.Perm
}

// Space is a simulated single-level page table.
type Space struct {
	mu    sync.RWMutex
	mem   *Memory
	root  uint64
	pages map[uint64]pte
}

var _ mm.Space = (*Space)(nil)

// NewSpace creates an empty address space backed by mem.
func NewSpace(mem *Memory) (*Space, error) {
	root, err := mem.AllocFrame()
	if err != nil {
		return nil, err
	}
	return &Space{mem: mem, root: root, pages: map[uint64]pte{}}, nil
}

// Token returns a satp-like value: mode 8 in the top bits and the root frame.
func (s *Space) Token() uint64 {
	return 8<<60 | s.root
}

// Translate maps va to a physical address.
func (s *Space) Translate(va uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps := s.mem.pageSize
	entry, ok := s.pages[va/ps]
	if !ok {
		return 0, false
	}
	return entry.ppn*ps + va%ps, true
}

// Perm returns permission bits of the page containing va.
func (s *Space) Perm(va uint64) (mm.Perm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.pages[va/s.mem.pageSize]
	return entry.perm, ok
}

func (s *Space) vpnRange(start, end uint64) (uint64, uint64) {
	ps := s.mem.pageSize
	return start / ps, (end + ps - 1) / ps
}

// MapRegion maps [start,end) with zeroed frames.
func (s *Space) MapRegion(start, end uint64, perm mm.Perm) bool {
	if end <= start {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := s.vpnRange(start, end)
	for vpn := from; vpn < to; vpn++ {
		if _, ok := s.pages[vpn]; ok {
			return false
		}
	}
	for vpn := from; vpn < to; vpn++ {
		if err := s.mapPage(vpn, perm); err != nil {
			for undo := from; undo < vpn; undo++ {
				s.unmapPage(undo)
			}
			return false
		}
	}
	return true
}

// UnmapRegion unmaps [start,end).
func (s *Space) UnmapRegion(start, end uint64) bool {
	if end <= start {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := s.vpnRange(start, end)
	for vpn := from; vpn < to; vpn++ {
		if _, ok := s.pages[vpn]; !ok {
			return false
		}
	}
	for vpn := from; vpn < to; vpn++ {
		s.unmapPage(vpn)
	}
	return true
}

func (s *Space) mapPage(vpn uint64, perm mm.Perm) error {
	ppn, err := s.mem.AllocFrame()
	if err != nil {
		return err
	}
	s.pages[vpn] = pte{ppn: ppn, perm: perm}
	return nil
}

func (s *Space) unmapPage(vpn uint64) {
	entry := s.pages[vpn]
	delete(s.pages, vpn)
	s.mem.FreeFrame(entry.ppn)
}

// Clone copies every mapped page into fresh frames.
func (s *Space) Clone() (mm.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone, err := NewSpace(s.mem)
	if err != nil {
		return nil, err
	}
	for vpn, entry := range s.pages {
		if err := clone.mapPage(vpn, entry.perm); err != nil {
			clone.Release()
			return nil, err
		}
		s.mem.copyFrame(clone.pages[vpn].ppn, entry.ppn)
	}
	return clone, nil
}

// Release frees all frames. Calling it again is a no-op.
func (s *Space) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages == nil {
		return
	}
	for vpn := range s.pages {
		s.unmapPage(vpn)
	}
	s.pages = nil
	s.mem.FreeFrame(s.root)
}

// Pages returns mapped virtual page numbers in ascending order.
func (s *Space) Pages() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]uint64, 0, len(s.pages))
	for vpn := range s.pages {
		result = append(result, vpn)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
