// Package image resolves program names to loadable images. Images are either
// registered in memory or decoded from YAML manifests found through the meta
// service.
package image

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/meta"
	"gopkg.in/yaml.v3"
)

// DefaultExtension is appended to names without one.
const DefaultExtension = ".yaml"

// Service is a program image catalog.
type Service struct {
	metaService *meta.Service
	extension   string
	mu          sync.RWMutex
	images      map[string]*model.Image
}

// DecodeYAML decodes and validates an image manifest.
func (s *Service) DecodeYAML(encoded []byte) (*model.Image, error) {
	image := &model.Image{}
	if err := yaml.Unmarshal(encoded, image); err != nil {
		return nil, err
	}
	if issues := image.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return image, nil
}

// Load returns the image registered under name, reading its manifest on the
// first request.
func (s *Service) Load(ctx context.Context, name string) (*model.Image, error) {
	if name == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	image, ok := s.images[name]
	s.mu.RUnlock()
	if ok {
		return image, nil
	}
	if s.metaService == nil {
		return nil, fmt.Errorf("image %v: %w", name, dao.ErrNotFound)
	}
	URL := name
	if filepath.Ext(URL) == "" {
		URL += s.extension
	}
	ok, err := s.metaService.Exists(ctx, URL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("image %v: %w", name, dao.ErrNotFound)
	}
	image = &model.Image{}
	if err = s.metaService.Load(ctx, URL, image); err != nil {
		return nil, fmt.Errorf("failed to load image from %s: %w", URL, err)
	}
	if image.Name == "" {
		image.Name = nameFromURL(URL)
	}
	image.Source = &model.Source{URL: s.metaService.URL(URL)}
	if issues := image.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	s.mu.Lock()
	s.images[name] = image
	s.mu.Unlock()
	return image, nil
}

// Upsert registers image under its name.
func (s *Service) Upsert(image *model.Image) error {
	if image == nil {
		return dao.ErrNilEntity
	}
	if issues := image.Validate(); len(issues) > 0 {
		return issues[0]
	}
	s.mu.Lock()
	s.images[image.Name] = image
	s.mu.Unlock()
	return nil
}

// Refresh drops the cached entry so that the next Load re-reads the manifest.
func (s *Service) Refresh(name string) {
	s.mu.Lock()
	delete(s.images, name)
	s.mu.Unlock()
}

// Names returns the cached image names.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.images))
	for name := range s.images {
		result = append(result, name)
	}
	return result
}

func nameFromURL(URL string) string {
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// New creates an image catalog.
func New(opts ...Option) *Service {
	ret := &Service{extension: DefaultExtension, images: map[string]*model.Image{}}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}
