package deadlock

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a thread or resource index exceeds the
// configured bounds.
var ErrOutOfBounds = errors.New("deadlock: index out of bounds")

// Bounds fixes the matrix dimensions of a detector.
type Bounds struct {
	MaxThreads   int `json:"maxThreads" yaml:"maxThreads"`
	MaxResources int `json:"maxResources" yaml:"maxResources"`
}

// DefaultBounds returns the bounds used when none are configured.
func DefaultBounds() Bounds {
	return Bounds{MaxThreads: 32, MaxResources: 32}
}

// Validate checks that both dimensions are positive.
func (b Bounds) Validate() error {
	if b.MaxThreads <= 0 {
		return fmt.Errorf("deadlock: maxThreads must be > 0")
	}
	if b.MaxResources <= 0 {
		return fmt.Errorf("deadlock: maxResources must be > 0")
	}
	return nil
}

// Detector keeps available, allocation and need matrices for one resource
// family. It is not safe for concurrent use; the owning process lock guards it.
type Detector struct {
	bounds     Bounds
	enabled    bool
	available  []int
	allocation [][]int
	need       [][]int
}

// New creates a disabled detector with zeroed matrices.
func New(bounds Bounds) *Detector {
	d := &Detector{
		bounds:     bounds,
		available:  make([]int, bounds.MaxResources),
		allocation: make([][]int, bounds.MaxThreads),
		need:       make([][]int, bounds.MaxThreads),
	}
	for t := 0; t < bounds.MaxThreads; t++ {
		d.allocation[t] = make([]int, bounds.MaxResources)
		d.need[t] = make([]int, bounds.MaxResources)
	}
	return d
}

// Bounds returns detector dimensions.
func (d *Detector) Bounds() Bounds { return d.bounds }

// Enable turns detection on or off. Bookkeeping is only maintained while
// enabled.
func (d *Detector) Enable(enabled bool) { d.enabled = enabled }

// Enabled reports whether detection is on.
func (d *Detector) Enabled() bool { return d.enabled }

// Fits reports whether thread t and resource r are within bounds.
func (d *Detector) Fits(t, r int) bool {
	return t >= 0 && t < d.bounds.MaxThreads && r >= 0 && r < d.bounds.MaxResources
}

func (d *Detector) checkResource(r int) error {
	if r < 0 || r >= d.bounds.MaxResources {
		return fmt.Errorf("resource %d: %w", r, ErrOutOfBounds)
	}
	return nil
}

func (d *Detector) check(t, r int) error {
	if !d.Fits(t, r) {
		return fmt.Errorf("thread %d, resource %d: %w", t, r, ErrOutOfBounds)
	}
	return nil
}

// AddTotal makes n more units of resource r available.
func (d *Detector) AddTotal(r, n int) error {
	if !d.enabled {
		return nil
	}
	if err := d.checkResource(r); err != nil {
		return err
	}
	d.available[r] += n
	return nil
}

// ConsumeTotal removes n units of resource r from the available pool.
func (d *Detector) ConsumeTotal(r, n int) error {
	if !d.enabled {
		return nil
	}
	if err := d.checkResource(r); err != nil {
		return err
	}
	d.available[r] -= n
	return nil
}

// SetNeed overwrites need[t][r].
func (d *Detector) SetNeed(t, r, n int) error {
	if !d.enabled {
		return nil
	}
	if err := d.check(t, r); err != nil {
		return err
	}
	d.need[t][r] = n
	return nil
}

// AdjustNeed adds delta to need[t][r].
func (d *Detector) AdjustNeed(t, r, delta int) error {
	if !d.enabled {
		return nil
	}
	if err := d.check(t, r); err != nil {
		return err
	}
	d.need[t][r] += delta
	return nil
}

// Allocate moves n units of r from available to thread t and satisfies the
// matching part of its need.
func (d *Detector) Allocate(t, r, n int) error {
	if !d.enabled {
		return nil
	}
	if err := d.check(t, r); err != nil {
		return err
	}
	d.available[r] -= n
	d.allocation[t][r] += n
	d.need[t][r] -= n
	if d.need[t][r] < 0 {
		d.need[t][r] = 0
	}
	return nil
}

// Release returns n units of r held by thread t to the available pool.
func (d *Detector) Release(t, r, n int) error {
	if !d.enabled {
		return nil
	}
	if err := d.check(t, r); err != nil {
		return err
	}
	d.allocation[t][r] -= n
	d.available[r] += n
	return nil
}

// ClearNeed drops every outstanding request of thread t. Allocations are kept
// because the resources are still held.
func (d *Detector) ClearNeed(t int) {
	if !d.enabled || t < 0 || t >= d.bounds.MaxThreads {
		return
	}
	for r := range d.need[t] {
		d.need[t][r] = 0
	}
}

// ResetResource zeroes every column of r, used when a resource slot is
// destroyed and may be reused.
func (d *Detector) ResetResource(r int) {
	if !d.enabled || r < 0 || r >= d.bounds.MaxResources {
		return
	}
	d.available[r] = 0
	for t := 0; t < d.bounds.MaxThreads; t++ {
		d.allocation[t][r] = 0
		d.need[t][r] = 0
	}
}

// Detect reports whether every thread can run to completion from the
// current state. A disabled detector always reports true.
func (d *Detector) Detect() bool {
	if !d.enabled {
		return true
	}
	work := make([]int, len(d.available))
	copy(work, d.available)
	finish := make([]bool, d.bounds.MaxThreads)
	for progressed := true; progressed; {
		progressed = false
		for t := 0; t < d.bounds.MaxThreads; t++ {
			if finish[t] || !d.satisfiable(t, work) {
				continue
			}
			for r := range work {
				work[r] += d.allocation[t][r]
			}
			finish[t] = true
			progressed = true
		}
	}
	for _, done := range finish {
		if !done {
			return false
		}
	}
	return true
}

func (d *Detector) satisfiable(t int, work []int) bool {
	for r, n := range d.need[t] {
		if n > work[r] {
			return false
		}
	}
	return true
}

// Available returns available[r].
func (d *Detector) Available(r int) int {
	if d.checkResource(r) != nil {
		return 0
	}
	return d.available[r]
}

// Allocation returns allocation[t][r].
func (d *Detector) Allocation(t, r int) int {
	if !d.Fits(t, r) {
		return 0
	}
	return d.allocation[t][r]
}

// Need returns need[t][r].
func (d *Detector) Need(t, r int) int {
	if !d.Fits(t, r) {
		return 0
	}
	return d.need[t][r]
}

// Total returns available[r] plus every thread's allocation of r.
func (d *Detector) Total(r int) int {
	if d.checkResource(r) != nil {
		return 0
	}
	total := d.available[r]
	for t := 0; t < d.bounds.MaxThreads; t++ {
		total += d.allocation[t][r]
	}
	return total
}
