package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/kproc/internal/clock"
)

// Delta is a signed counter change emitted on task state transitions.
type Delta struct {
	Total   int
	Ready   int
	Running int
	Blocked int
	Zombie  int
	Reaped  int
}

// Counters is a point in time view of the tracker.
type Counters struct {
	StartedAt    time.Time `json:"startedAt"`
	TotalTasks   int       `json:"totalTasks"`
	ReadyTasks   int       `json:"readyTasks"`
	RunningTasks int       `json:"runningTasks"`
	BlockedTasks int       `json:"blockedTasks"`
	ZombieTasks  int       `json:"zombieTasks"`
	ReapedTasks  int       `json:"reapedTasks"`
}

// Live returns the number of tasks that have not exited.
func (c Counters) Live() int {
	return c.ReadyTasks + c.RunningTasks + c.BlockedTasks
}

// Progress aggregates counters. It is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	counters Counters
	onChange func(Counters)
}

// New creates a tracker; onChange may be nil.
func New(onChange func(Counters)) *Progress {
	return &Progress{counters: Counters{StartedAt: clock.Now()}, onChange: onChange}
}

// Update applies d. The callback, if any, runs outside the lock with the
// updated counters.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.counters.TotalTasks += d.Total
	p.counters.ReadyTasks += d.Ready
	p.counters.RunningTasks += d.Running
	p.counters.BlockedTasks += d.Blocked
	p.counters.ZombieTasks += d.Zombie
	p.counters.ReapedTasks += d.Reaped
	snapshot := p.counters
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// OnChange replaces the update callback; nil disables it.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds p in a derived context.
func WithTracker(ctx context.Context, p *Progress) context.Context {
	return context.WithValue(ctx, trackerKey, p)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies d to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
