// Package providers holds the billing provider adapters and the helpers they share.
package providers

import (
	"fmt"
	"sort"

	"github.com/amora-chat/amora/internal/billing/domain"
)

// Registry maps webhook route names to adapters.
type Registry struct {
	adapters map[string]domain.ProviderAdapter
}

// NewRegistry registers the given adapters under their Name.
func NewRegistry(adapters ...domain.ProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[string]domain.ProviderAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for a route name.
func (r *Registry) Get(name string) (domain.ProviderAdapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	return a, nil
}

// Names lists registered route names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
