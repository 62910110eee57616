// Package tracing wraps OpenTelemetry so that kernel services can open spans
// around lifecycle syscalls without importing the SDK directly.
package tracing
