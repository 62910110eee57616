// Package idgen provides identifier sources used across the kernel: opaque
// UUID strings for messages and events, and recycling integer allocators for
// pids, tids, kernel stacks and physical frames.
// It lives under `internal` because callers should not rely on its exact
// behaviour beyond the documented allocation order.
package idgen
