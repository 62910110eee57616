package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Source describes where an image was loaded from.
type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Image represents a loadable program
type Image struct {
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`
	// Name identifies the program (exec/spawn path)
	Name string `json:"name" yaml:"name"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Entry is the user virtual address of the first instruction
	Entry uint64 `json:"entry" yaml:"entry"`

	// Segments are mapped in order into a fresh address space
	Segments []*Segment `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// Segment is one contiguous loadable region.
type Segment struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	VAddr uint64 `json:"vaddr" yaml:"vaddr"`
	// Size in bytes of the mapped region, at least len(Bytes()).
	Size uint64 `json:"size,omitempty" yaml:"size,omitempty"`
	// Perm is a combination of r, w and x.
	Perm string `json:"perm" yaml:"perm"`
	// Data is copied verbatim to the start of the segment.
	Data string `json:"data,omitempty" yaml:"data,omitempty"`
	// Hex is a hex encoded alternative to Data.
	Hex string `json:"hex,omitempty" yaml:"hex,omitempty"`
}

// Bytes returns segment content.
func (s *Segment) Bytes() ([]byte, error) {
	if s.Hex != "" {
		data, err := hex.DecodeString(strings.TrimSpace(s.Hex))
		if err != nil {
			return nil, fmt.Errorf("segment %v: invalid hex: %w", s.Name, err)
		}
		return data, nil
	}
	return []byte(s.Data), nil
}

// MemSize returns the number of bytes the segment occupies.
func (s *Segment) MemSize() uint64 {
	size := s.Size
	if n := uint64(len(s.Data)); n > size && s.Hex == "" {
		size = n
	}
	if n := uint64(len(s.Hex) / 2); n > size {
		size = n
	}
	return size
}

// Readable reports whether Perm grants read access.
func (s *Segment) Readable() bool { return strings.ContainsRune(s.Perm, 'r') }

// Writable reports whether Perm grants write access.
func (s *Segment) Writable() bool { return strings.ContainsRune(s.Perm, 'w') }

// Executable reports whether Perm grants execute access.
func (s *Segment) Executable() bool { return strings.ContainsRune(s.Perm, 'x') }

// NewImage creates an image with the given name and entry point.
func NewImage(name string, entry uint64) *Image {
	return &Image{Name: name, Entry: entry}
}

// WithSegment appends a segment and returns the image.
func (i *Image) WithSegment(vaddr uint64, perm string, data string) *Image {
	i.Segments = append(i.Segments, &Segment{VAddr: vaddr, Perm: perm, Data: data})
	return i
}

// End returns the highest address covered by any segment.
func (i *Image) End() uint64 {
	var end uint64
	for _, segment := range i.Segments {
		if e := segment.VAddr + segment.MemSize(); e > end {
			end = e
		}
	}
	return end
}

// Validate performs a structural check of the image. The returned slice is
// empty when the image can be loaded.
func (i *Image) Validate() []error {
	var issues []error
	if i.Name == "" {
		issues = append(issues, fmt.Errorf("image name is empty"))
	}
	if len(i.Segments) == 0 {
		issues = append(issues, fmt.Errorf("image %v has no segments", i.Name))
		return issues
	}
	entryCovered := false
	for idx, segment := range i.Segments {
		if segment == nil {
			issues = append(issues, fmt.Errorf("image %v: segment[%d] is nil", i.Name, idx))
			continue
		}
		if strings.Trim(segment.Perm, "rwx") != "" || segment.Perm == "" {
			issues = append(issues, fmt.Errorf("image %v: segment[%d] invalid perm %q", i.Name, idx, segment.Perm))
		}
		if segment.MemSize() == 0 {
			issues = append(issues, fmt.Errorf("image %v: segment[%d] is empty", i.Name, idx))
		}
		if _, err := segment.Bytes(); err != nil {
			issues = append(issues, err)
		}
		if segment.Executable() && i.Entry >= segment.VAddr && i.Entry < segment.VAddr+segment.MemSize() {
			entryCovered = true
		}
		for _, other := range i.Segments[:idx] {
			if other != nil && segment.VAddr < other.VAddr+other.MemSize() && other.VAddr < segment.VAddr+segment.MemSize() {
				issues = append(issues, fmt.Errorf("image %v: segment[%d] overlaps another segment", i.Name, idx))
			}
		}
	}
	if !entryCovered {
		issues = append(issues, fmt.Errorf("image %v: entry %#x is not inside an executable segment", i.Name, i.Entry))
	}
	return issues
}
