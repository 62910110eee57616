package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/mm"
)

func TestSpace_MapRegion(t *testing.T) {
	mem := New(4096, 0)
	space, err := NewSpace(mem)
	require.NoError(t, err)

	testCases := []struct {
		description string
		start, end  uint64
		mapped      bool
	}{
		{description: "fresh region", start: 0x10000, end: 0x12000, mapped: true},
		{description: "overlapping region", start: 0x11000, end: 0x13000, mapped: false},
		{description: "adjacent region", start: 0x12000, end: 0x12001, mapped: true},
		{description: "empty region", start: 0x20000, end: 0x20000, mapped: false},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.mapped, space.MapRegion(tc.start, tc.end, mm.PermR|mm.PermW|mm.PermU))
		})
	}
	assert.Equal(t, []uint64{0x10, 0x11, 0x12}, space.Pages())
	assert.False(t, space.UnmapRegion(0x12000, 0x14000))
	assert.True(t, space.UnmapRegion(0x11000, 0x13000))
	assert.Equal(t, []uint64{0x10}, space.Pages())

	space.Release()
	assert.Equal(t, 0, mem.InUse())
}

func TestSpace_CloneAndStraddlingWrite(t *testing.T) {
	mem := New(4096, 0)
	space, err := NewSpace(mem)
	require.NoError(t, err)
	require.True(t, space.MapRegion(0x1000, 0x3000, mm.PermR|mm.PermW|mm.PermU))

	va := uint64(0x1ffc)
	require.NoError(t, mm.WriteUint64(space, mem, va, 0x1122334455667788))

	clone, err := space.Clone()
	require.NoError(t, err)
	value, err := mm.ReadUint64(clone, mem, va)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1122334455667788, value)

	require.NoError(t, mm.WriteUint64(clone, mem, va, 7))
	value, err = mm.ReadUint64(space, mem, va)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1122334455667788, value, "clone must not share frames")

	assert.False(t, mm.Translatable(space, mem, 0x2ffc, 8))
	assert.Error(t, mm.WriteUint64(space, mem, 0x2ffc, 1))

	space.Release()
	clone.Release()
	assert.Equal(t, 0, mem.InUse())
}

func TestMemory_Limit(t *testing.T) {
	mem := New(4096, 2)
	space, err := NewSpace(mem)
	require.NoError(t, err)
	assert.True(t, space.MapRegion(0, 0x1000, mm.PermR))
	assert.False(t, space.MapRegion(0x1000, 0x2000, mm.PermR))
	assert.Equal(t, 2, mem.InUse())
}

func TestLoader_Load(t *testing.T) {
	layout := mm.DefaultLayout()
	mem := New(layout.PageSize, 0)
	loader := NewLoader(mem, layout)
	image := model.NewImage("hello", 0x10000).
		WithSegment(0x10000, "rx", "code").
		WithSegment(0x10800, "rw", "data")

	space, ustackBase, entry, err := loader.Load(image)
	require.NoError(t, err)
	assert.EqualValues(t, 0x10000, entry)
	assert.EqualValues(t, 0x12000, ustackBase)

	text, err := mm.ReadCString(space, mem, 0x10800, 8)
	require.NoError(t, err)
	assert.Equal(t, "data", text)
	code, err := mm.ReadBytes(space, mem, 0x10000, 4)
	require.NoError(t, err)
	assert.Equal(t, "code", string(code))

	perm, ok := space.(*Space).Perm(0x10000)
	require.True(t, ok)
	assert.Equal(t, mm.PermU|mm.PermR|mm.PermW|mm.PermX, perm)

	_, _, _, err = loader.Load(model.NewImage("broken", 0))
	assert.Error(t, err)
}
