// Package mm defines the memory-management surface the process core relies on:
// address spaces with page translation, program loading and physical memory
// access. The memory sub-package provides an in-process simulation.
package mm
