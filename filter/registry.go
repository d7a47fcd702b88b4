package filter

import (
	"sort"
	"sync"
)

// Registry provides named filter and predicate lookup for chains built
// from configuration.
type Registry struct {
	mu         sync.RWMutex
	filters    map[string]Filter
	predicates map[string]Predicate
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		filters:    make(map[string]Filter),
		predicates: make(map[string]Predicate),
	}
}

// Register adds f under its own name, replacing any previous entry.
func (r *Registry) Register(f Filter) {
	r.RegisterAs(f.Name(), f)
}

// RegisterAs adds f under name.
func (r *Registry) RegisterAs(name string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = f
}

// RegisterPredicate adds a named predicate.
func (r *Registry) RegisterPredicate(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

// Get retrieves a filter by name.
func (r *Registry) Get(name string) (Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	return f, ok
}

// Predicate retrieves a predicate by name.
func (r *Registry) Predicate(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[name]
	return p, ok
}

// Decorated returns a copy of r in which every filter is wrapped by wrap.
// Predicates are shared. Later registrations on r are not reflected.
func (r *Registry) Decorated(wrap func(Filter) Filter) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for name, f := range r.filters {
		out.filters[name] = wrap(f)
	}
	for name, p := range r.predicates {
		out.predicates[name] = p
	}
	return out
}

// List returns sorted names of all registered filters.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.filters)
}

// Predicates returns sorted names of all registered predicates.
func (r *Registry) Predicates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.predicates)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
