package provider

import (
	"fmt"
	"slices"
	"sync"
)

// Registry manages the providers available to the process, one per platform.
type Registry struct {
	providers map[Platform]Provider
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Platform]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[p.Platform()]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, p.Platform())
	}
	r.providers[p.Platform()] = p
	return nil
}

// Get retrieves the provider of a platform.
func (r *Registry) Get(platform Platform) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[platform]
	return p, ok
}

// Resolve retrieves the provider of a platform or fails with ErrNotFound.
func (r *Registry) Resolve(platform Platform) (Provider, error) {
	p, ok := r.Get(platform)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, platform)
	}
	return p, nil
}

// Platforms lists the registered platforms in name order.
func (r *Registry) Platforms() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Platform, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
