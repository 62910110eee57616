package execution

import (
	"context"
	"reflect"
)

var ProcessKey = KeyOf[*Process]()
var TaskKey = KeyOf[*Task]()

// WithTask returns a context carrying task and its process.
func WithTask(ctx context.Context, task *Task) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if task == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, TaskKey, task)
	return context.WithValue(ctx, ProcessKey, task.Process())
}

// ContextValue returns the value of the provided type from the context
func ContextValue[T any](ctx context.Context) T {
	key := KeyOf[T]()
	if value := ctx.Value(key); value != nil {
		return value.(T)
	}
	var t T
	return t
}

// KeyOf returns the reflect.Type of the provided type
func KeyOf[T any]() reflect.Type {
	var a T
	return reflect.TypeOf(a)
}
