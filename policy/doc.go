// Package policy provides optional syscall filtering for the kernel. A
// Policy attached to the kernel, or carried by the caller's context, decides
// whether each syscall may run before it touches any kernel state.
package policy
