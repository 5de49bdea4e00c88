// Package registry keeps track of live untitled working copies.
package registry

import (
	"sort"
	"sync"

	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/workingcopy"
)

// Registry is a membership set of working copies keyed by resource.
// It never disposes the copies it tracks.
type Registry struct {
	mu     sync.RWMutex
	copies map[string]*workingcopy.Untitled
	added  []func(*workingcopy.Untitled)
}

var _ workingcopy.Registry = (*Registry)(nil)

// New creates an empty registry.
func New() *Registry {
	return &Registry{copies: make(map[string]*workingcopy.Untitled)}
}

// OnRegister registers fn to run whenever a copy joins the registry.
// It must be called before copies are created.
func (r *Registry) OnRegister(fn func(*workingcopy.Untitled)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, fn)
}

// Register adds wc and returns its idempotent unregister function. A copy with
// the same resource replaces the previous entry.
func (r *Registry) Register(wc *workingcopy.Untitled) func() {
	key := wc.Resource().String()

	r.mu.Lock()
	r.copies[key] = wc
	hooks := append([]func(*workingcopy.Untitled){}, r.added...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(wc)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.copies[key] == wc {
				delete(r.copies, key)
			}
		})
	}
}

// Get returns the live copy for res.
func (r *Registry) Get(res resource.URI) (*workingcopy.Untitled, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wc, ok := r.copies[res.String()]
	return wc, ok
}

// List returns live copies sorted by resource.
func (r *Registry) List() []*workingcopy.Untitled {
	r.mu.RLock()
	out := make([]*workingcopy.Untitled, 0, len(r.copies))
	for _, wc := range r.copies {
		out = append(out, wc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Resource().String() < out[j].Resource().String()
	})
	return out
}

// Len returns the number of live copies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.copies)
}
