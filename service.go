package kproc

import (
	"context"
	"fmt"
	"io"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/dao/image"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/messaging"
	"github.com/viant/kproc/service/messaging/memory"
	"github.com/viant/kproc/service/meta"
	"github.com/viant/kproc/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Service wires the kernel with its image catalog, events, counters and tracing.
type Service struct {
	config        *Config
	runtime       *Runtime
	metaService   *meta.Service
	metaBaseURL   string
	metaFsOptions []storage.Option
	images        []*model.Image
	eventService  *event.Service
	stdin         io.Reader
	stdout        io.Writer
	onProgress    func(progress.Counters)
	kernelOptions []kernel.Option
	tracing       *tracing.Config
	exporter      sdktrace.SpanExporter
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.tracing != nil {
		s.config.Tracing = *s.tracing
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := s.setupTracing(); err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	s.runtime.progress = progress.New(s.onProgress)
	kernelOptions := []kernel.Option{
		kernel.WithConfig(s.config.Kernel),
		kernel.WithImageService(s.runtime.images),
		kernel.WithImages(s.images...),
		kernel.WithConsole(s.stdin, s.stdout),
		kernel.WithProgress(s.runtime.progress),
	}
	if s.eventService != nil {
		kernelOptions = append(kernelOptions, kernel.WithEvents(s.eventService))
	}
	kernelOptions = append(kernelOptions, s.kernelOptions...)
	var err error
	if s.runtime.kernel, err = kernel.New(kernelOptions...); err != nil {
		return fmt.Errorf("failed to create kernel: %w", err)
	}
	s.runtime.events = s.eventService
	return nil
}

func (s *Service) setupTracing() error {
	if s.exporter == nil {
		return s.config.Tracing.Setup()
	}
	name := s.config.Tracing.ServiceName
	if name == "" {
		name = "kproc"
	}
	return tracing.InitWithExporter(name, s.config.Tracing.ServiceVersion, s.exporter)
}

func (s *Service) ensureBaseSetup() error {
	if s.metaBaseURL == "" {
		s.metaBaseURL = s.config.ImagesURL
	}
	if s.metaService == nil && s.metaBaseURL != "" {
		s.metaService = meta.New(afs.New(), s.metaBaseURL, s.metaFsOptions...)
	}
	var imageOptions []image.Option
	if s.metaService != nil {
		imageOptions = append(imageOptions, image.WithMetaService(s.metaService))
	}
	s.runtime.images = image.New(imageOptions...)
	if s.eventService == nil && s.config.Events.Enabled {
		queueConfig := s.config.Events.Queue
		srv, err := event.New(messaging.VendorMemory, event.WithNewMemoryQueueConfig(func(string) memory.Config {
			return queueConfig
		}))
		if err != nil {
			return fmt.Errorf("failed to create event service: %w", err)
		}
		s.eventService = srv
	}
	return nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Runtime returns the runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// MetaService returns the meta service, nil when no base URL is configured.
func (s *Service) MetaService() *meta.Service {
	return s.metaService
}

// EventService returns the lifecycle event service, nil when events are off.
func (s *Service) EventService() *event.Service {
	return s.eventService
}

// NewContext returns ctx carrying the task counter tracker.
func (s *Service) NewContext(ctx context.Context) context.Context {
	return progress.WithTracker(ctx, s.runtime.progress)
}

// New creates a service; call Runtime().Start to boot the init process.
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), runtime: &Runtime{}}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}
