package execution

import "errors"

var (
	// ErrMultiThreaded is returned by fork and exec on a process with more than one thread.
	ErrMultiThreaded = errors.New("execution: operation requires a single-threaded process")

	// ErrArgsTooLong is returned when exec arguments do not fit the user stack.
	ErrArgsTooLong = errors.New("execution: arguments exceed user stack")

	// ErrZombie is returned when operating on an exited process.
	ErrZombie = errors.New("execution: process has exited")
)
