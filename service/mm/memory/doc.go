// Package memory simulates physical memory and page-table backed address
// spaces. Frames are recycled through an id allocator so leaks show up as a
// growing InUse count.
package memory
