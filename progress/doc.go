// Package progress keeps aggregated task counters (how many tasks are ready,
// running, blocked or zombie) for a running kernel.
package progress
