package converter

import (
	"sync"

	"github.com/segmentio/ksuid"
)

// Registry hands out converters behind opaque KSUID handles
type Registry struct {
	mu    sync.RWMutex
	items map[ksuid.KSUID]*Converter
	opts  Options
}

// NewRegistry creates a registry whose converters share opts
func NewRegistry(opts Options) *Registry {
	return &Registry{items: map[ksuid.KSUID]*Converter{}, opts: opts}
}

// Create allocates a new converter and returns its handle
func (r *Registry) Create() ksuid.KSUID {
	id := ksuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = New(r.opts)
	return id
}

// Get returns the converter for a handle
func (r *Registry) Get(id ksuid.KSUID) (*Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	return c, ok
}

// Delete clears and releases the converter for a handle. It reports whether
// the handle existed.
func (r *Registry) Delete(id ksuid.KSUID) bool {
	r.mu.Lock()
	c, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()

	if ok {
		c.Clear()
	}
	return ok
}

// Len returns the number of live handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
