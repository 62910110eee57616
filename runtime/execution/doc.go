// Package execution holds the live control blocks of the kernel: processes
// (address space, descriptor table, children, threads, synchronisation
// objects and deadlock detectors) and tasks (per-thread scheduling state,
// kernel stack, user stack and trap context).
//
// A process guards its mutable state with a single mutex reachable through
// WithInner; a task guards its scheduling fields with its own mutex. Lock
// order is process before task, and no code path holds two process locks at
// once.
package execution
