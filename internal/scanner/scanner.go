package scanner

import (
	"fmt"
	"sort"

	"VideoScanner/internal/ports"
)

// Registry keeps a mapping from strategy names ("youtube", "feed") to providers.
type Registry struct {
	providers map[string]ports.SearchProvider
	fallback  string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]ports.SearchProvider{}}
}

// Register adds or replaces a provider implementation. The first registered
// provider becomes the fallback for sources that do not name one.
func (r *Registry) Register(provider ports.SearchProvider) {
	if r.providers == nil {
		r.providers = map[string]ports.SearchProvider{}
	}
	if r.fallback == "" {
		r.fallback = provider.Name()
	}
	r.providers[provider.Name()] = provider
}

// SetFallback selects the provider used for sources without a scanner name.
func (r *Registry) SetFallback(name string) {
	r.fallback = name
}

// Resolve returns a provider by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.SearchProvider, error) {
	if name == "" {
		name = r.fallback
	}
	if provider, ok := r.providers[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("scanner %q is not registered", name)
}

// Names lists registered strategies.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
