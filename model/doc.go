// Package model contains the static definitions consumed by the kernel,
// chiefly program images. An image is typically loaded from a YAML manifest
// that lists loadable segments, their virtual addresses and permissions.
package model
