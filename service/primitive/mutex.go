package primitive

import "errors"

// ErrNotOwner is returned when a waiter releases a mutex it does not hold.
var ErrNotOwner = errors.New("primitive: mutex not held by caller")

// Mutex is a lock with a FIFO wait queue. Unlock hands ownership straight
// to the first waiter.
type Mutex[T comparable] struct {
	blocking bool
	locked   bool
	owner    T
	waiters  waitQueue[T]
}

// NewMutex creates an unlocked mutex.
func NewMutex[T comparable](blocking bool) *Mutex[T] {
	return &Mutex[T]{blocking: blocking}
}

// Blocking reports the requested flavour.
func (m *Mutex[T]) Blocking() bool { return m.blocking }

// Lock acquires the mutex for t and returns true, or queues t and returns false.
func (m *Mutex[T]) Lock(t T) bool {
	if !m.locked {
		m.locked = true
		m.owner = t
		return true
	}
	m.waiters.push(t)
	return false
}

// TryLock acquires the mutex only when it is free.
func (m *Mutex[T]) TryLock(t T) bool {
	if m.locked {
		return false
	}
	m.locked = true
	m.owner = t
	return true
}

// Unlock releases the mutex held by t. When a waiter exists it becomes the
// new owner and is returned.
func (m *Mutex[T]) Unlock(t T) (T, bool, error) {
	var zero T
	if !m.locked || m.owner != t {
		return zero, false, ErrNotOwner
	}
	next, ok := m.waiters.pop()
	if !ok {
		m.locked = false
		m.owner = zero
		return zero, false, nil
	}
	m.owner = next
	return next, true, nil
}

// Locked reports whether the mutex is held.
func (m *Mutex[T]) Locked() bool { return m.locked }

// Owner returns the current holder.
func (m *Mutex[T]) Owner() (T, bool) { return m.owner, m.locked }

// Waiting returns the number of queued waiters.
func (m *Mutex[T]) Waiting() int { return m.waiters.len() }
