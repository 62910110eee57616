package kernel

import (
	"fmt"
	"io"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/runtime/execution"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/image"
	"github.com/viant/kproc/service/event"
)

type Option func(*Service)

// WithConfig sets the kernel configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithImageService sets the catalog used to resolve program names.
func WithImageService(images *image.Service) Option {
	return func(s *Service) {
		s.images = images
	}
}

// WithImages registers in-memory program images.
func WithImages(images ...*model.Image) Option {
	return func(s *Service) {
		if s.images == nil {
			s.images = image.New()
		}
		for _, img := range images {
			if err := s.images.Upsert(img); err != nil && s.err == nil {
				s.err = fmt.Errorf("kernel: invalid image: %w", err)
			}
		}
	}
}

// WithConsole sets the streams behind descriptors 0, 1 and 2.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(s *Service) {
		s.stdin = in
		s.stdout = out
	}
}

// WithEvents publishes lifecycle events to srv.
func WithEvents(srv *event.Service) Option {
	return func(s *Service) {
		s.events = srv
	}
}

// WithProcessDAO sets the process table implementation.
func WithProcessDAO(processes dao.Service[int, execution.Process]) Option {
	return func(s *Service) {
		s.processes = processes
	}
}

// WithProgress sets the task counter tracker.
func WithProgress(p *progress.Progress) Option {
	return func(s *Service) {
		s.progress = p
	}
}

// WithPolicy filters syscalls; it overrides Config.Policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}
