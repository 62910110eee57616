package scheduler

import (
	"fmt"
	"sync"
)

// MinPriority is the smallest accepted priority.
const MinPriority = 2

// Entity is a schedulable unit.
type Entity interface {
	comparable
	IsReady() bool
	Stride() uint64
	SetStride(stride uint64)
	Priority() uint64
}

// Config represents scheduler configuration
type Config struct {
	// BigStride is divided by the priority to obtain the pass of an entity
	BigStride uint64 `json:"bigStride" yaml:"bigStride"`

	// DefaultPriority is assigned to newly created tasks
	DefaultPriority uint64 `json:"defaultPriority" yaml:"defaultPriority"`
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		BigStride:       1 << 20,
		DefaultPriority: 16,
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.BigStride == 0 {
		return fmt.Errorf("scheduler: bigStride must be > 0")
	}
	if c.DefaultPriority < MinPriority {
		return fmt.Errorf("scheduler: defaultPriority must be >= %d", MinPriority)
	}
	if c.DefaultPriority > c.BigStride {
		return fmt.Errorf("scheduler: defaultPriority must be <= bigStride")
	}
	if c.BigStride/MinPriority >= 1<<63 {
		return fmt.Errorf("scheduler: bigStride too large")
	}
	return nil
}

// Accepts reports whether priority keeps the pass positive.
func (c Config) Accepts(priority uint64) bool {
	return priority >= MinPriority && priority <= c.BigStride
}

// Service is the ready queue.
type Service[T Entity] struct {
	config Config
	mu     sync.Mutex
	ready  []T
}

// New creates an empty ready queue.
func New[T Entity](config Config) *Service[T] {
	return &Service[T]{config: config}
}

// Config returns the scheduler configuration.
func (s *Service[T]) Config() Config { return s.config }

// Pass returns the stride increment for priority.
func (s *Service[T]) Pass(priority uint64) uint64 {
	if priority < MinPriority {
		priority = MinPriority
	}
	if pass := s.config.BigStride / priority; pass > 0 {
		return pass
	}
	return 1
}

// Add appends t to the ready queue. Adding an entity twice panics.
func (s *Service[T]) Add(t T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(t) != -1 {
		panic(fmt.Sprintf("scheduler: entity %v is already queued", t))
	}
	s.ready = append(s.ready, t)
}

// Fetch removes and returns the ready entity with the smallest stride; ties
// go to the entity queued first. The winner's stride advances by its pass
// before it leaves the queue.
func (s *Service[T]) Fetch() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	var bestStride uint64
	for i, candidate := range s.ready {
		if !candidate.IsReady() {
			continue
		}
		stride := candidate.Stride()
		if best == -1 || less(stride, bestStride) {
			best, bestStride = i, stride
		}
	}
	var zero T
	if best == -1 {
		return zero, false
	}
	winner := s.ready[best]
	winner.SetStride(bestStride + s.Pass(winner.Priority()))
	s.removeAt(best)
	return winner, true
}

// less compares strides through their wrapping difference so that values
// keep their order after overflow.
func less(a, b uint64) bool {
	return int64(a-b) < 0
}

// Remove drops t from the queue.
func (s *Service[T]) Remove(t T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(t)
	if idx == -1 {
		return false
	}
	s.removeAt(idx)
	return true
}

// Contains reports whether t is queued.
func (s *Service[T]) Contains(t T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(t) != -1
}

// Len returns the queue length.
func (s *Service[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}

func (s *Service[T]) indexOf(t T) int {
	for i, candidate := range s.ready {
		if candidate == t {
			return i
		}
	}
	return -1
}

func (s *Service[T]) removeAt(idx int) {
	copy(s.ready[idx:], s.ready[idx+1:])
	var zero T
	s.ready[len(s.ready)-1] = zero
	s.ready = s.ready[:len(s.ready)-1]
}
