package pipeline

import (
	"sort"
	"sync"
)

// Registry is a catalog of processors keyed by name
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Processor
}

// NewRegistry creates a registry holding ps
func NewRegistry(ps ...Processor) *Registry {
	r := &Registry{procs: make(map[string]Processor)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a processor
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.Name()] = p
}

// Get looks up a processor by name
func (r *Registry) Get(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[name]
	return p, ok
}

// Names returns the registered operation names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a processor's description, or "" if it has none
func Describe(p Processor) string {
	if d, ok := p.(Describer); ok {
		return d.Description()
	}
	return ""
}
