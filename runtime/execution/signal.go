package execution

// SignalFlags is a pending-signal bitset. Signals are recorded only.
type SignalFlags uint32

const (
	SIGINT  = 2
	SIGILL  = 4
	SIGABRT = 6
	SIGKILL = 9
	SIGSEGV = 11
	// MaxSignal is the highest signal number that fits the set.
	MaxSignal = 31
)

// With returns flags with sig set.
func (f SignalFlags) With(sig int) SignalFlags {
	if sig <= 0 || sig > MaxSignal {
		return f
	}
	return f | 1<<uint(sig)
}

// Has reports whether sig is pending.
func (f SignalFlags) Has(sig int) bool {
	if sig <= 0 || sig > MaxSignal {
		return false
	}
	return f&(1<<uint(sig)) != 0
}
