package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecycler_Alloc(t *testing.T) {
	testCases := []struct {
		description string
		allocs      int
		release     []int
		expect      []int
	}{
		{
			description: "fresh allocator extends the range",
			allocs:      3,
			expect:      []int{3, 4},
		},
		{
			description: "released ids are reused before the range grows",
			allocs:      3,
			release:     []int{1},
			expect:      []int{1, 3},
		},
		{
			description: "smallest released id first",
			allocs:      5,
			release:     []int{4, 0, 2},
			expect:      []int{0, 2, 4, 5},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			r := NewRecycler()
			for i := 0; i < tc.allocs; i++ {
				assert.Equal(t, i, r.Alloc())
			}
			for _, id := range tc.release {
				r.Dealloc(id)
			}
			var actual []int
			for range tc.expect {
				actual = append(actual, r.Alloc())
			}
			assert.Equal(t, tc.expect, actual)
			assert.Equal(t, tc.allocs+len(tc.expect)-len(tc.release), r.InUse())
		})
	}
}

func TestRecycler_DeallocPanics(t *testing.T) {
	r := NewRecycler()
	id := r.Alloc()
	assert.Panics(t, func() { r.Dealloc(id + 1) }, "never allocated")
	r.Dealloc(id)
	assert.Panics(t, func() { r.Dealloc(id) }, "double release")
	assert.Panics(t, func() { r.Dealloc(-1) })
}

func TestNew(t *testing.T) {
	prev := NewFunc
	defer func() { NewFunc = prev }()
	NewFunc = func() string { return "fixed" }
	assert.Equal(t, "fixed", New())
}

func TestRecycler_Peek(t *testing.T) {
	r := NewRecycler()
	assert.Equal(t, 0, r.Peek())
	for i := 0; i < 4; i++ {
		r.Alloc()
	}
	assert.Equal(t, 4, r.Peek())
	r.Dealloc(2)
	r.Dealloc(1)
	assert.Equal(t, 1, r.Peek())
	assert.Equal(t, 1, r.Alloc())
	assert.Equal(t, 2, r.Peek())
}
