package shm

import (
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry tracks the open regions of a process by name.
type Registry struct {
	regions cmap.ConcurrentMap[string, *Region]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regions: cmap.New[*Region]()}
}

// Add registers r under its name. Names must be unique.
func (g *Registry) Add(r *Region) error {
	if !g.regions.SetIfAbsent(r.Name(), r) {
		return fmt.Errorf("region %q already registered", r.Name())
	}
	return nil
}

// Get returns the region registered under name.
func (g *Registry) Get(name string) (*Region, bool) {
	return g.regions.Get(name)
}

// Remove unregisters name and returns the region that was registered.
func (g *Registry) Remove(name string) (*Region, bool) {
	return g.regions.Pop(name)
}

// Len returns the number of registered regions.
func (g *Registry) Len() int {
	return g.regions.Count()
}

// Range calls fn for every registered region.
func (g *Registry) Range(fn func(name string, r *Region)) {
	g.regions.IterCb(fn)
}

// DisposeAll disposes and unregisters every region, returning the first error.
func (g *Registry) DisposeAll() error {
	var first error
	for _, name := range g.regions.Keys() {
		r, ok := g.regions.Pop(name)
		if !ok {
			continue
		}
		if err := r.Dispose(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
