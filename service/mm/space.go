package mm

import (
	"errors"

	"github.com/viant/kproc/model"
)

// ErrUnmapped is returned when a user address has no translation.
var ErrUnmapped = errors.New("mm: address not mapped")

// ErrOutOfMemory is returned when no physical frame is left.
var ErrOutOfMemory = errors.New("mm: out of memory")

// Perm holds page permission bits.
type Perm uint8

const (
	PermR Perm = 1 << 1
	PermW Perm = 1 << 2
	PermX Perm = 1 << 3
	PermU Perm = 1 << 4
)

// PermFromPort converts an mmap port (bit0 read, bit1 write, bit2 exec) to
// user page permissions.
func PermFromPort(port uint64) Perm {
	return Perm(port&0x7)<<1 | PermU
}

// Space is a user address space.
type Space interface {
	// Token identifies the page table root, installed on context switch.
	Token() uint64
	// Translate maps a virtual address to a physical one.
	Translate(va uint64) (uint64, bool)
	// MapRegion maps [start,end) with fresh zeroed frames, false when any page is already mapped.
	MapRegion(start, end uint64, perm Perm) bool
	// UnmapRegion unmaps [start,end), false when any page is not mapped.
	UnmapRegion(start, end uint64) bool
	// Clone deep-copies every mapped page.
	Clone() (Space, error)
	// Release frees every frame owned by the space.
	Release()
}

// Loader builds address spaces from program images.
type Loader interface {
	// Load returns the new space, the user stack base (first address above
	// the image plus a guard page) and the entry point.
	Load(image *model.Image) (Space, uint64, uint64, error)
}

// PhysMem gives the kernel direct access to physical frames.
type PhysMem interface {
	PageSize() uint64
	Read(pa uint64, p []byte) error
	Write(pa uint64, p []byte) error
}
