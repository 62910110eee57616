package kernel

import "errors"

// Syscall result words.
const (
	ResultOK        = 0
	ResultError     = -1
	ResultNotExited = -2
	// ResultDeadlock refuses a request that would leave the process unsafe.
	ResultDeadlock = -0xDEAD
)

var (
	// ErrHalted is returned once the init process has exited.
	ErrHalted = errors.New("kernel: halted")

	// ErrIdle is returned when a syscall arrives with no task on the CPU.
	ErrIdle = errors.New("kernel: no current task")

	// ErrNotBooted is returned by operations that need the init process.
	ErrNotBooted = errors.New("kernel: not booted")
)
