package primitive

// Condvar is a condition variable wait queue.
type Condvar[T any] struct {
	waiters waitQueue[T]
}

// NewCondvar creates a condition variable with no waiters.
func NewCondvar[T any]() *Condvar[T] {
	return &Condvar[T]{}
}

// Wait queues t.
func (c *Condvar[T]) Wait(t T) { c.waiters.push(t) }

// Signal dequeues the first waiter.
func (c *Condvar[T]) Signal() (T, bool) { return c.waiters.pop() }

// Waiting returns the number of queued waiters.
func (c *Condvar[T]) Waiting() int { return c.waiters.len() }
