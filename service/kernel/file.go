package kernel

import (
	"context"
	"errors"
	"io"

	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/fs"
	"github.com/viant/kproc/service/mm"
)

func fileAt(inner *execution.ProcessInner, fd int) fs.File {
	if fd < 0 || fd >= len(inner.FdTable) {
		return nil
	}
	return inner.FdTable[fd]
}

// Dup copies descriptor fd into the lowest free slot and returns it.
func (s *Service) Dup(ctx context.Context, fd int) int {
	return s.call(ctx, SysDup, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			file := fileAt(inner, fd)
			if file == nil {
				return
			}
			result = inner.AllocFd()
			inner.FdTable[result] = file
		})
		return result
	})
}

// Close frees descriptor fd.
func (s *Service) Close(ctx context.Context, fd int) int {
	return s.call(ctx, SysClose, func(ctx context.Context, task *execution.Task) int {
		result := ResultError
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if fileAt(inner, fd) == nil {
				return
			}
			inner.FdTable[fd] = nil
			result = ResultOK
		})
		return result
	})
}

// Write copies length bytes at buf to descriptor fd and returns the count.
func (s *Service) Write(ctx context.Context, fd int, buf, length uint64) int {
	return s.call(ctx, SysWrite, func(ctx context.Context, task *execution.Task) int {
		var file fs.File
		var data []byte
		var err error
		task.Process().WithInner(func(inner *execution.ProcessInner) {
			if file = fileAt(inner, fd); file == nil || !file.Writable() || inner.Space == nil {
				file = nil
				return
			}
			data, err = mm.ReadBytes(inner.Space, s.memory, buf, length)
		})
		if file == nil || err != nil {
			return ResultError
		}
		n, err := file.Write(data)
		if err != nil {
			return ResultError
		}
		return n
	})
}

// Read fills at most length bytes at buf from descriptor fd and returns the
// count, 0 at end of input.
func (s *Service) Read(ctx context.Context, fd int, buf, length uint64) int {
	return s.call(ctx, SysRead, func(ctx context.Context, task *execution.Task) int {
		var file fs.File
		process := task.Process()
		process.WithInner(func(inner *execution.ProcessInner) {
			if file = fileAt(inner, fd); file == nil || !file.Readable() || inner.Space == nil ||
				!mm.Translatable(inner.Space, s.memory, buf, length) {
				file = nil
			}
		})
		if file == nil {
			return ResultError
		}
		data := make([]byte, length)
		n, err := file.Read(data)
		if err != nil && !errors.Is(err, io.EOF) {
			return ResultError
		}
		result := n
		process.WithInner(func(inner *execution.ProcessInner) {
			if inner.Space == nil || mm.WriteBytes(inner.Space, s.memory, buf, data[:n]) != nil {
				result = ResultError
			}
		})
		return result
	})
}
