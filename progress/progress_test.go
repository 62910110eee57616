package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var seen []Counters
	p := New(func(c Counters) { seen = append(seen, c) })

	p.Update(Delta{Total: 1, Ready: 1})
	p.Update(Delta{Ready: -1, Running: 1})
	p.Update(Delta{Running: -1, Zombie: 1})
	p.Update(Delta{Zombie: -1, Reaped: 1})

	snapshot := p.Snapshot()
	assert.Equal(t, 1, snapshot.TotalTasks)
	assert.Equal(t, 0, snapshot.Live())
	assert.Equal(t, 1, snapshot.ReapedTasks)
	assert.Len(t, seen, 4)
	assert.Equal(t, 1, seen[1].RunningTasks)
	assert.False(t, snapshot.StartedAt.IsZero())

	p.OnChange(nil)
	p.Update(Delta{Total: 1})
	assert.Len(t, seen, 4)

	var nilTracker *Progress
	nilTracker.Update(Delta{Total: 1})
	assert.Equal(t, Counters{}, nilTracker.Snapshot())
}

func TestProgress_Concurrent(t *testing.T) {
	p := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Update(Delta{Total: 1, Blocked: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, p.Snapshot().BlockedTasks)
}

func TestContext(t *testing.T) {
	p := New(nil)
	ctx := WithTracker(context.Background(), p)
	UpdateCtx(ctx, Delta{Total: 2})
	UpdateCtx(context.Background(), Delta{Total: 5})
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 2, p.Snapshot().TotalTasks)
}
