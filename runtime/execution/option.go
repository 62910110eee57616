package execution

import "github.com/viant/kproc/service/fs"

// Option customises a process under construction.
type Option func(inner *ProcessInner)

// WithParent records the parent pid.
func WithParent(pid int) Option {
	return func(inner *ProcessInner) {
		inner.ParentPID = pid
	}
}

// WithFdTable installs a descriptor table. The slice is copied; the file
// handles are shared.
func WithFdTable(files []fs.File) Option {
	return func(inner *ProcessInner) {
		inner.FdTable = append([]fs.File(nil), files...)
	}
}

func withHeap(bottom, brk uint64) Option {
	return func(inner *ProcessInner) {
		inner.HeapBottom = bottom
		inner.Brk = brk
	}
}

// WithSignals seeds pending signals.
func WithSignals(flags SignalFlags) Option {
	return func(inner *ProcessInner) {
		inner.Signals = flags
	}
}
