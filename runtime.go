package kproc

import (
	"context"
	"fmt"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/image"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/kernel"
)

// Runtime represents a booted or bootable kernel
type Runtime struct {
	kernel   *kernel.Service
	images   *image.Service
	events   *event.Service
	progress *progress.Progress
}

// Kernel returns the syscall surface.
func (r *Runtime) Kernel() *kernel.Service {
	return r.kernel
}

// Start boots the init process
func (r *Runtime) Start(ctx context.Context) error {
	return r.kernel.Boot(ctx)
}

// Shutdown stops event delivery
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.events != nil {
		r.events.Close()
	}
	return nil
}

// LoadImage loads a program image
func (r *Runtime) LoadImage(ctx context.Context, name string) (*model.Image, error) {
	return r.images.Load(ctx, name)
}

// RefreshImage discards the cached copy of image name. The next exec or spawn
// re-reads the manifest through the meta service.
func (r *Runtime) RefreshImage(name string) error {
	if r == nil || r.images == nil {
		return fmt.Errorf("runtime not fully initialised: image service missing")
	}
	r.images.Refresh(name)
	return nil
}

// UpsertImage decodes a YAML manifest and registers it under its name. When
// data is nil the call falls back to RefreshImage(location).
func (r *Runtime) UpsertImage(location string, data []byte) error {
	if r == nil || r.images == nil {
		return fmt.Errorf("runtime not fully initialised: image service missing")
	}
	if data == nil {
		return r.RefreshImage(location)
	}
	img, err := r.images.DecodeYAML(data)
	if err != nil {
		return fmt.Errorf("failed to decode image YAML: %w", err)
	}
	img.Source = &model.Source{URL: location}
	return r.images.Upsert(img)
}

// Process returns a live or zombie process
func (r *Runtime) Process(ctx context.Context, pid int) (*execution.Process, error) {
	return r.kernel.Processes().Load(ctx, pid)
}

// Processes returns processes matching parameters named criteria.State or
// criteria.ParentPID.
func (r *Runtime) Processes(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Process, error) {
	return r.kernel.Processes().List(ctx, parameters...)
}

// ProcessFromContext returns the process of the calling task carried by ctx
func (r *Runtime) ProcessFromContext(ctx context.Context) *execution.Process {
	if task := execution.ContextValue[*execution.Task](ctx); task != nil {
		return task.Process()
	}
	return nil
}

// Progress returns task counters.
func (r *Runtime) Progress() progress.Counters {
	return r.progress.Snapshot()
}
