// Package memory is a provider that keeps its surfaces in memory. It records
// every attached object and lets callers inject user interaction, which makes
// it the reference provider for the bridge binary and the tests.
package memory

import (
	"context"
	"sync"

	"github.com/ekisa-team/mapbridge/internal/provider"
)

// Options configure the provider.
type Options struct {
	Platform provider.Platform
	// LocationGranted is the state of the runtime location permission.
	LocationGranted bool
	// ManualReady defers the map ready event until Surface.Ready is called.
	ManualReady bool
}

// Provider creates in-memory surfaces.
type Provider struct {
	opts Options

	mu       sync.RWMutex
	surfaces map[string]*Surface
}

// New creates a provider.
func New(opts Options) *Provider {
	if opts.Platform == "" {
		opts.Platform = provider.PlatformWeb
	}
	return &Provider{
		opts:     opts,
		surfaces: make(map[string]*Surface),
	}
}

// Platform implements provider.Provider.
func (p *Provider) Platform() provider.Platform {
	return p.opts.Platform
}

// NewSurface implements provider.Provider.
func (p *Provider) NewSurface(ctx context.Context, mapID string, cfg provider.Config, sink provider.Sink) (provider.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := newSurface(mapID, p.opts, cfg, sink)

	p.mu.Lock()
	p.surfaces[mapID] = s
	p.mu.Unlock()

	if !p.opts.ManualReady {
		s.Ready()
	}
	return s, nil
}

// Surface returns the most recent surface created for mapID.
func (p *Provider) Surface(mapID string) (*Surface, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.surfaces[mapID]
	return s, ok
}

// SetLocationGranted changes the location permission for new surfaces and
// for existing ones.
func (p *Provider) SetLocationGranted(granted bool) {
	p.mu.Lock()
	p.opts.LocationGranted = granted
	surfaces := make([]*Surface, 0, len(p.surfaces))
	for _, s := range p.surfaces {
		surfaces = append(surfaces, s)
	}
	p.mu.Unlock()

	for _, s := range surfaces {
		s.mu.Lock()
		s.opts.LocationGranted = granted
		s.mu.Unlock()
	}
}
