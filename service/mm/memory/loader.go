package memory

import (
	"fmt"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/mm"
)

// Loader maps program images into fresh simulated address spaces.
type Loader struct {
	mem    *Memory
	layout mm.Layout
}

var _ mm.Loader = (*Loader)(nil)

// NewLoader creates a loader allocating from mem.
func NewLoader(mem *Memory, layout mm.Layout) *Loader {
	return &Loader{mem: mem, layout: layout}
}

// Load maps every segment with user permissions and copies its content.
func (l *Loader) Load(image *model.Image) (mm.Space, uint64, uint64, error) {
	if image == nil {
		return nil, 0, 0, fmt.Errorf("memory: image was nil")
	}
	if issues := image.Validate(); len(issues) > 0 {
		return nil, 0, 0, issues[0]
	}
	space, err := NewSpace(l.mem)
	if err != nil {
		return nil, 0, 0, err
	}
	if err = l.loadSegments(space, image); err != nil {
		space.Release()
		return nil, 0, 0, fmt.Errorf("failed to load image %v: %w", image.Name, err)
	}
	ustackBase := l.layout.PageCeil(image.End()) + l.layout.PageSize
	return space, ustackBase, image.Entry, nil
}

func (l *Loader) loadSegments(space *Space, image *model.Image) error {
	for _, segment := range image.Segments {
		perm := mm.PermU
		if segment.Readable() {
			perm |= mm.PermR
		}
		if segment.Writable() {
			perm |= mm.PermW
		}
		if segment.Executable() {
			perm |= mm.PermX
		}
		if err := l.mapShared(space, segment.VAddr, segment.VAddr+segment.MemSize(), perm); err != nil {
			return err
		}
		data, err := segment.Bytes()
		if err != nil {
			return err
		}
		if err = mm.WriteBytes(space, l.mem, segment.VAddr, data); err != nil {
			return err
		}
	}
	return nil
}

// mapShared maps the pages of [start,end) that are not mapped yet; segments
// may share a boundary page.
func (l *Loader) mapShared(space *Space, start, end uint64, perm mm.Perm) error {
	space.mu.Lock()
	defer space.mu.Unlock()
	from, to := space.vpnRange(start, end)
	for vpn := from; vpn < to; vpn++ {
		if entry, ok := space.pages[vpn]; ok {
			entry.perm |= perm
			space.pages[vpn] = entry
			continue
		}
		if err := space.mapPage(vpn, perm); err != nil {
			return err
		}
	}
	return nil
}
