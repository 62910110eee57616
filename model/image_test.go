package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImage_Validate(t *testing.T) {
	testCases := []struct {
		description string
		image       *Image
		issues      int
	}{
		{
			description: "valid image",
			image:       NewImage("hello", 0x1000).WithSegment(0x1000, "rx", "code").WithSegment(0x2000, "rw", "data"),
		},
		{
			description: "missing segments",
			image:       NewImage("empty", 0x1000),
			issues:      1,
		},
		{
			description: "entry outside executable segment",
			image:       NewImage("noexec", 0x2000).WithSegment(0x1000, "rx", "code").WithSegment(0x2000, "rw", "data"),
			issues:      1,
		},
		{
			description: "bad perm and overlap",
			image:       NewImage("bad", 0x1000).WithSegment(0x1000, "rxz", "code").WithSegment(0x1002, "rx", "x"),
			issues:      2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Len(t, tc.image.Validate(), tc.issues)
		})
	}
}

func TestSegment_Bytes(t *testing.T) {
	segment := &Segment{Hex: "deadbeef", Size: 16}
	data, err := segment.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
	assert.EqualValues(t, 16, segment.MemSize())

	segment = &Segment{Data: "abc"}
	assert.EqualValues(t, 3, segment.MemSize())

	_, err = (&Segment{Hex: "zz"}).Bytes()
	assert.Error(t, err)
}

func TestImage_End(t *testing.T) {
	image := NewImage("x", 0x1000).WithSegment(0x1000, "rx", "abcd").WithSegment(0x3000, "rw", "ab")
	assert.EqualValues(t, 0x3002, image.End())
}
