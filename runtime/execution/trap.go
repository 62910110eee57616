package execution

import (
	"encoding/binary"
	"fmt"

	"github.com/viant/kproc/service/mm"
)

// Register indexes with a syscall meaning.
const (
	RegSp   = 2
	RegA0   = 10
	RegA1   = 11
	regSize = 8
)

// TrapContextSize is the encoded size of a TrapContext.
const TrapContextSize = (32 + 5) * regSize

// sstatusSPIE enables interrupts after returning to user mode; SPP stays
// clear so sret lands in user mode.
const sstatusSPIE = 1 << 5

// TrapContext is the user register file saved on trap entry. It lives in the
// thread's trap context page inside the user address space.
type TrapContext struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSp    uint64
	TrapHandler uint64
}

// AppInitContext prepares a context that enters user mode at entry with the
// stack pointer at sp.
func AppInitContext(entry, sp, kernelSatp, kernelSp, trapHandler uint64) *TrapContext {
	ctx := &TrapContext{
		Sstatus:     sstatusSPIE,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSp,
		TrapHandler: trapHandler,
	}
	ctx.X[RegSp] = sp
	return ctx
}

// Sp returns the user stack pointer.
func (c *TrapContext) Sp() uint64 { return c.X[RegSp] }

// Encode serialises the context in little-endian field order.
func (c *TrapContext) Encode() []byte {
	data := make([]byte, TrapContextSize)
	offset := 0
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(data[offset:], v)
		offset += regSize
	}
	for _, x := range c.X {
		put(x)
	}
	put(c.Sstatus)
	put(c.Sepc)
	put(c.KernelSatp)
	put(c.KernelSp)
	put(c.TrapHandler)
	return data
}

// DecodeTrapContext reverses Encode.
func DecodeTrapContext(data []byte) (*TrapContext, error) {
	if len(data) < TrapContextSize {
		return nil, fmt.Errorf("trap context: expected %d bytes, got %d", TrapContextSize, len(data))
	}
	ctx := &TrapContext{}
	offset := 0
	get := func() uint64 {
		v := binary.LittleEndian.Uint64(data[offset:])
		offset += regSize
		return v
	}
	for i := range ctx.X {
		ctx.X[i] = get()
	}
	ctx.Sstatus = get()
	ctx.Sepc = get()
	ctx.KernelSatp = get()
	ctx.KernelSp = get()
	ctx.TrapHandler = get()
	return ctx, nil
}

func loadTrapContext(mem mm.PhysMem, ppn uint64) (*TrapContext, error) {
	data := make([]byte, TrapContextSize)
	if err := mem.Read(ppn*mem.PageSize(), data); err != nil {
		return nil, err
	}
	return DecodeTrapContext(data)
}

func storeTrapContext(mem mm.PhysMem, ppn uint64, ctx *TrapContext) error {
	return mem.Write(ppn*mem.PageSize(), ctx.Encode())
}

// TaskContext is the callee-saved kernel register set restored on switch.
type TaskContext struct {
	Ra uint64
	Sp uint64
	S  [12]uint64
}

// GotoTrapReturn builds a context that resumes at trapReturn on the given
// kernel stack.
func GotoTrapReturn(kstackTop, trapReturn uint64) TaskContext {
	return TaskContext{Ra: trapReturn, Sp: kstackTop}
}
