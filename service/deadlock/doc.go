// Package deadlock implements a Banker's-algorithm safety check over a fixed
// number of thread slots and resource slots. A process owns one detector per
// resource family (mutexes, semaphores); callers record a tentative request,
// ask Detect whether the state stays safe and roll the request back when it
// does not.
package deadlock
