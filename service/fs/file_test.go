package fs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsole(t *testing.T) {
	out := &bytes.Buffer{}
	table := Console(strings.NewReader("in"), out)
	assert.Len(t, table, 3)
	assert.Same(t, table[1], table[2])

	buf := make([]byte, 2)
	n, err := table[0].Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, "in", string(buf[:n]))
	_, err = table[0].Write(buf)
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = table[2].Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", out.String())
	assert.False(t, table[1].Readable())
	assert.True(t, table[1].Writable())
}
