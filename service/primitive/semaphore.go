package primitive

// Semaphore is a counting semaphore. A negative count is the number of
// queued waiters.
type Semaphore[T any] struct {
	count   int
	waiters waitQueue[T]
}

// NewSemaphore creates a semaphore with count units.
func NewSemaphore[T any](count int) *Semaphore[T] {
	return &Semaphore[T]{count: count}
}

// Down takes one unit for t and returns true, or queues t and returns false.
func (s *Semaphore[T]) Down(t T) bool {
	s.count--
	if s.count < 0 {
		s.waiters.push(t)
		return false
	}
	return true
}

// Up returns one unit; the woken waiter, if any, now holds it.
func (s *Semaphore[T]) Up() (T, bool) {
	s.count++
	if s.count <= 0 {
		return s.waiters.pop()
	}
	var zero T
	return zero, false
}

// Count returns the current count.
func (s *Semaphore[T]) Count() int { return s.count }

// Waiting returns the number of queued waiters.
func (s *Semaphore[T]) Waiting() int { return s.waiters.len() }
