package kernel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_Write(t *testing.T) {
	ctx := context.Background()
	out := &bytes.Buffer{}
	k := newKernel(t, WithConsole(nil, out))

	testCases := []struct {
		description string
		fd          int
		buf         uint64
		length      uint64
		expect      int
	}{
		{description: "stdout", fd: 1, buf: dataVA, length: 5, expect: 5},
		{description: "stderr", fd: 2, buf: dataVA + 5, length: 6, expect: 6},
		{description: "stdin is read only", fd: 0, buf: dataVA, length: 5, expect: ResultError},
		{description: "closed descriptor", fd: 9, buf: dataVA, length: 5, expect: ResultError},
		{description: "unmapped buffer", fd: 1, buf: 0x7000_0000, length: 4, expect: ResultError},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, k.Write(ctx, tc.fd, tc.buf, tc.length))
		})
	}
	assert.Equal(t, "hello world", out.String())
}

func TestService_DupClose(t *testing.T) {
	ctx := context.Background()
	out := &bytes.Buffer{}
	k := newKernel(t, WithConsole(nil, out))

	fd := k.Dup(ctx, 1)
	assert.Equal(t, 3, fd)
	assert.Equal(t, 5, k.Write(ctx, fd, dataVA, 5))
	assert.Equal(t, "hello", out.String())

	assert.Equal(t, ResultOK, k.Close(ctx, fd))
	assert.Equal(t, ResultError, k.Close(ctx, fd))
	assert.Equal(t, ResultError, k.Write(ctx, fd, dataVA, 5))
	assert.Equal(t, ResultError, k.Dup(ctx, fd))
	assert.Equal(t, ResultError, k.Dup(ctx, -1))

	assert.Equal(t, ResultOK, k.Close(ctx, 0))
	assert.Equal(t, 0, k.Dup(ctx, 2), "lowest free slot")
}

func TestService_Read(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, WithConsole(strings.NewReader("abc"), nil))
	initProc := k.InitProcess()

	assert.Equal(t, 3, k.Read(ctx, 0, dataVA, 8))
	assert.Equal(t, []byte("abclo"), userRead(t, k, initProc, dataVA, 5))
	assert.Equal(t, 0, k.Read(ctx, 0, dataVA, 8), "end of input")
	assert.Equal(t, ResultError, k.Read(ctx, 1, dataVA, 8), "stdout is write only")
	assert.Equal(t, ResultError, k.Read(ctx, 0, 0x7000_0000, 8))
	assert.Equal(t, ResultError, k.Read(ctx, 4, dataVA, 8))
}
