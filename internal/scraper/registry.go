package scraper

import "github.com/rotisserie/eris"

// Registry maps adapter names to their implementations.
type Registry struct {
	adapters map[string]Adapter
	order    []string // registration order for deterministic runs
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter. Registering a name twice replaces the adapter
// but keeps its original position.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("scraper: unknown source %q", name)
	}
	return a, nil
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.order)
}

// Select returns adapters matching the given criteria, in registration
// order unless names are given, in which case their order is kept.
// If category is non-nil, only adapters in that category are returned.
func (r *Registry) Select(category *Category, names []string) ([]Adapter, error) {
	if len(names) > 0 {
		var result []Adapter
		for _, name := range names {
			a, err := r.Get(name)
			if err != nil {
				return nil, err
			}
			if category != nil && a.Category() != *category {
				continue
			}
			result = append(result, a)
		}
		return result, nil
	}

	var result []Adapter
	for _, a := range r.All() {
		if category != nil && a.Category() != *category {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// ByCategory returns all adapters in the given category, in registration
// order.
func (r *Registry) ByCategory(cat Category) []Adapter {
	var result []Adapter
	for _, name := range r.order {
		if r.adapters[name].Category() == cat {
			result = append(result, r.adapters[name])
		}
	}
	return result
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	result := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.adapters[name])
	}
	return result
}

// AllNames returns all registered adapter names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
