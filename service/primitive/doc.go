// Package primitive holds the process-local synchronisation objects used by
// the mutex, semaphore and condition variable syscalls. Objects never block
// by themselves: they record waiters and hand the resource to the next one,
// leaving scheduling decisions to the caller. They are guarded by the lock of
// the process that owns them.
package primitive
