package deadlock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	op   string
	t, r int
	n    int
}

func apply(t *testing.T, d *Detector, steps []step) {
	for _, s := range steps {
		var err error
		switch s.op {
		case "total":
			err = d.AddTotal(s.r, s.n)
		case "need":
			err = d.AdjustNeed(s.t, s.r, s.n)
		case "alloc":
			err = d.Allocate(s.t, s.r, s.n)
		case "release":
			err = d.Release(s.t, s.r, s.n)
		}
		require.NoError(t, err)
	}
}

func TestDetector_Detect(t *testing.T) {
	testCases := []struct {
		description string
		steps       []step
		expect      bool
	}{
		{
			description: "empty state is safe",
			expect:      true,
		},
		{
			description: "holder can finish and release to waiter",
			steps: []step{
				{op: "total", r: 0, n: 1},
				{op: "need", t: 1, r: 0, n: 1},
				{op: "alloc", t: 1, r: 0, n: 1},
				{op: "need", t: 2, r: 0, n: 1},
			},
			expect: true,
		},
		{
			description: "crossed mutex requests are unsafe",
			steps: []step{
				{op: "total", r: 0, n: 1},
				{op: "total", r: 1, n: 1},
				{op: "need", t: 1, r: 0, n: 1},
				{op: "alloc", t: 1, r: 0, n: 1},
				{op: "need", t: 2, r: 1, n: 1},
				{op: "alloc", t: 2, r: 1, n: 1},
				{op: "need", t: 1, r: 1, n: 1},
				{op: "need", t: 2, r: 0, n: 1},
			},
			expect: false,
		},
		{
			description: "thread slot 0 takes part in the check",
			steps: []step{
				{op: "total", r: 0, n: 1},
				{op: "need", t: 1, r: 0, n: 1},
				{op: "alloc", t: 1, r: 0, n: 1},
				{op: "need", t: 0, r: 1, n: 1},
			},
			expect: false,
		},
		{
			description: "semaphore with spare units stays safe",
			steps: []step{
				{op: "total", r: 0, n: 2},
				{op: "need", t: 0, r: 0, n: 1},
				{op: "alloc", t: 0, r: 0, n: 1},
				{op: "need", t: 1, r: 0, n: 1},
				{op: "alloc", t: 1, r: 0, n: 1},
				{op: "need", t: 2, r: 0, n: 1},
				{op: "release", t: 0, r: 0, n: 1},
			},
			expect: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			d := New(Bounds{MaxThreads: 4, MaxResources: 4})
			d.Enable(true)
			apply(t, d, tc.steps)
			assert.Equal(t, tc.expect, d.Detect())
		})
	}
}

func TestDetector_Disabled(t *testing.T) {
	d := New(Bounds{MaxThreads: 2, MaxResources: 2})
	assert.False(t, d.Enabled())
	assert.NoError(t, d.AddTotal(0, 1))
	assert.NoError(t, d.AdjustNeed(1, 1, 5))
	assert.Equal(t, 0, d.Available(0))
	assert.Equal(t, 0, d.Need(1, 1))
	assert.True(t, d.Detect())
	assert.NoError(t, d.AddTotal(100, 1), "bounds are not checked while disabled")
}

func TestDetector_Bookkeeping(t *testing.T) {
	d := New(Bounds{MaxThreads: 3, MaxResources: 2})
	d.Enable(true)
	require.NoError(t, d.AddTotal(0, 3))
	require.NoError(t, d.AdjustNeed(1, 0, 2))
	require.NoError(t, d.Allocate(1, 0, 2))
	assert.Equal(t, 1, d.Available(0))
	assert.Equal(t, 2, d.Allocation(1, 0))
	assert.Equal(t, 0, d.Need(1, 0))
	assert.Equal(t, 3, d.Total(0))

	require.NoError(t, d.Release(1, 0, 1))
	assert.Equal(t, 3, d.Total(0))
	assert.Equal(t, 2, d.Available(0))

	require.NoError(t, d.SetNeed(2, 1, 4))
	d.ClearNeed(2)
	assert.Equal(t, 0, d.Need(2, 1))

	d.ResetResource(0)
	assert.Equal(t, 0, d.Total(0))

	err := d.AdjustNeed(3, 0, 1)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	err = d.AddTotal(2, 1)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	assert.False(t, d.Fits(0, 2))
	assert.True(t, d.Fits(2, 1))
}

func TestBounds_Validate(t *testing.T) {
	assert.NoError(t, DefaultBounds().Validate())
	assert.Error(t, Bounds{MaxThreads: 0, MaxResources: 1}.Validate())
	assert.Error(t, Bounds{MaxThreads: 1}.Validate())
}
