// Package fs defines file objects stored in process descriptor tables.
package fs

import (
	"errors"
	"io"
	"sync"
)

// ErrNotSupported is returned by a File for an operation it does not allow.
var ErrNotSupported = errors.New("fs: operation not supported")

// File is an open file shared between descriptor tables.
type File interface {
	Readable() bool
	Writable() bool
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Stdin reads console input.
type Stdin struct {
	mu     sync.Mutex
	reader io.Reader
}

// NewStdin wraps reader as standard input.
func NewStdin(reader io.Reader) *Stdin { return &Stdin{reader: reader} }

func (s *Stdin) Readable() bool { return true }
func (s *Stdin) Writable() bool { return false }

func (s *Stdin) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return 0, io.EOF
	}
	return s.reader.Read(p)
}

func (s *Stdin) Write([]byte) (int, error) { return 0, ErrNotSupported }

// Stdout writes console output.
type Stdout struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewStdout wraps writer as standard output.
func NewStdout(writer io.Writer) *Stdout { return &Stdout{writer: writer} }

func (s *Stdout) Readable() bool { return false }
func (s *Stdout) Writable() bool { return true }

func (s *Stdout) Read([]byte) (int, error) { return 0, ErrNotSupported }

func (s *Stdout) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return len(p), nil
	}
	return s.writer.Write(p)
}

// Console returns the initial descriptor table: stdin, stdout, stderr.
func Console(in io.Reader, out io.Writer) []File {
	stdout := NewStdout(out)
	return []File{NewStdin(in), stdout, stdout}
}
