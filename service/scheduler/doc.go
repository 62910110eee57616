// Package scheduler implements a stride scheduler for a single CPU. Every
// entity accumulates a pass value of BigStride/priority each time it is
// picked, so over time entities run in proportion to their priority.
package scheduler
