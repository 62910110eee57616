package kproc

import (
	"io"

	"github.com/viant/afs/storage"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/meta"
	"github.com/viant/kproc/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises a Service.
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithEventService sets the lifecycle event service
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithMetaService sets the meta service
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithMetaBaseURL sets the meta base URL
func WithMetaBaseURL(url string) Option {
	return func(s *Service) {
		s.metaBaseURL = url
	}
}

// WithMetaFsOptions with meta file system options
func WithMetaFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.metaFsOptions = options
	}
}

// WithImages registers in-memory program images
func WithImages(images ...*model.Image) Option {
	return func(s *Service) {
		s.images = append(s.images, images...)
	}
}

// WithConsole sets the streams behind the standard descriptors of every process
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(s *Service) {
		s.stdin = in
		s.stdout = out
	}
}

// WithProgressListener registers a callback invoked on every task counter change
func WithProgressListener(fn func(progress.Counters)) Option {
	return func(s *Service) {
		s.onProgress = fn
	}
}

// WithKernelOptions passes additional options to kernel.New
func WithKernelOptions(opts ...kernel.Option) Option {
	return func(s *Service) {
		s.kernelOptions = append(s.kernelOptions, opts...)
	}
}

// WithPolicy filters syscalls by name for every task.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.kernelOptions = append(s.kernelOptions, kernel.WithPolicy(p))
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter writes to os.Stdout; otherwise traces are written to the supplied file path.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.tracing = &tracing.Config{Enabled: true, ServiceName: serviceName, ServiceVersion: serviceVersion, OutputFile: outputFile}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for
// example OTLP, Jaeger or an in-memory exporter in tests.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.exporter = exporter
		s.tracing = &tracing.Config{ServiceName: serviceName, ServiceVersion: serviceVersion}
	}
}
