package dao

import "errors"

var (
	// ErrNotFound is returned for an unknown pid or image name.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID is returned for a negative pid or an empty image name.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when saving a nil process or image.
	ErrNilEntity = errors.New("dao: nil entity")
)
