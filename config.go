package kproc

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/messaging/memory"
	"github.com/viant/kproc/service/meta"
	"github.com/viant/kproc/tracing"
)

// Config is a serialisable representation of the runtime configuration. It
// can be populated from JSON or YAML; omitted fields keep their package
// defaults.
type Config struct {
	Kernel  kernel.Config  `json:"kernel" yaml:"kernel"`
	Events  EventsConfig   `json:"events" yaml:"events"`
	Tracing tracing.Config `json:"tracing" yaml:"tracing"`
	// ImagesURL is the base location of program manifests.
	ImagesURL string `json:"imagesURL,omitempty" yaml:"imagesURL,omitempty"`
}

// EventsConfig controls lifecycle event publishing.
type EventsConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Queue   memory.Config `json:"queue" yaml:"queue"`
}

// DefaultConfig returns a Config populated with package defaults. Callers may
// modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Kernel: kernel.DefaultConfig(),
		Events: EventsConfig{Queue: memory.DefaultConfig()},
	}
}

// Validate returns the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Kernel.Validate(); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	if c.Events.Enabled && c.Events.Queue.QueueBuffer < 0 {
		return fmt.Errorf("events.queue.queueBuffer must be >= 0")
	}
	return nil
}

// LoadConfig reads a YAML configuration from URL on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(afs.New(), "", options...).Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
