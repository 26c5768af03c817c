// Package registry hands out notification ids.
package registry

import (
	"sync/atomic"
)

// Registry assigns notification ids for the lifetime of the relay process.
// Ids start at 1 and are never recycled.
type Registry struct {
	sequence atomic.Uint32
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Assign returns replacesID unchanged when it is non-zero, otherwise the next
// id in sequence. A replaced id is not checked against earlier assignments:
// a caller may replace a notification that is already gone.
func (r *Registry) Assign(replacesID uint32) uint32 {
	if replacesID != 0 {
		return replacesID
	}
	return r.sequence.Add(1)
}

// Current reports the most recently assigned id, 0 if none.
func (r *Registry) Current() uint32 {
	return r.sequence.Load()
}
