package image

import (
	"strings"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/meta"
)

type Option func(*Service)

// WithMetaService sets the meta service used to read manifests.
func WithMetaService(meta *meta.Service) Option {
	return func(s *Service) {
		s.metaService = meta
	}
}

// WithExtension sets the manifest extension appended to bare names.
func WithExtension(ext string) Option {
	return func(s *Service) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extension = ext
	}
}

// WithImages registers images up front.
func WithImages(images ...*model.Image) Option {
	return func(s *Service) {
		for _, image := range images {
			if image != nil {
				s.images[image.Name] = image
			}
		}
	}
}
