// Package maps owns the live map instances of a process. Each instance pairs a
// provider surface with the overlay registries, the ground overlay slot and the
// cluster coordinator of that map, and serializes all of them on its own ui
// loop.
package maps

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/ekisa-team/mapbridge/internal/cluster"
	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
)

// Options tune new instances. They are read at creation; running instances
// keep the options they were created with.
type Options struct {
	Cluster     cluster.Options
	TileMaxZoom int
}

// DefaultOptions returns the built-in tuning.
func DefaultOptions() Options {
	return Options{
		Cluster: cluster.Options{
			MinClusterSize: cluster.DefaultMinClusterSize,
			RadiusPx:       cluster.DefaultRadiusPx,
			Debounce:       cluster.DefaultDebounce,
		},
		TileMaxZoom: overlay.DefaultTileMaxZoom,
	}
}

// Registry maps map identifiers to live instances.
type Registry struct {
	provider provider.Provider
	images   *imagecache.Cache
	bus      *events.Bus

	// lifecycle serializes create and destroy so that a forced re-create
	// finishes tearing the old instance down before the new one exists.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	instances map[string]*Instance
	opts      Options
}

// NewRegistry creates an empty registry backed by p.
func NewRegistry(p provider.Provider, images *imagecache.Cache, bus *events.Bus, opts Options) *Registry {
	return &Registry{
		provider:  p,
		images:    images,
		bus:       bus,
		instances: make(map[string]*Instance),
		opts:      opts,
	}
}

// Create registers a map under id. When id already exists Create is a no-op
// unless force is set, in which case the old instance is destroyed first.
// It reports whether a new instance was created.
func (r *Registry) Create(ctx context.Context, id string, cfg provider.Config, force bool) (bool, error) {
	if id == "" {
		return false, errs.InvalidArguments("map id must not be empty")
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if old, ok := r.lookup(id); ok {
		if !force {
			slog.Debug("Map already exists", "map_id", id)
			return false, nil
		}
		r.remove(id)
		if err := old.destroy(ctx); err != nil {
			return false, err
		}
		slog.Info("Map destroyed for re-create", "map_id", id)
	}

	inst, err := newInstance(ctx, id, cfg, r.provider, r.images, r.bus, r.Options())
	if err != nil {
		slog.Error("Failed to create map", "map_id", id, "error", err)
		return false, err
	}

	r.mu.Lock()
	r.instances[id] = inst
	r.mu.Unlock()

	slog.Info("Map created", "map_id", id, "platform", inst.Platform(), "camera", cfg.Camera().String())
	return true, nil
}

// Destroy releases the map. Unknown identifiers fail with MapNotFound.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	inst, ok := r.lookup(id)
	if !ok {
		return errs.MapNotFound(id)
	}
	r.remove(id)
	if err := inst.destroy(ctx); err != nil {
		return err
	}
	slog.Info("Map destroyed", "map_id", id)
	return nil
}

// Get resolves a live instance.
func (r *Registry) Get(id string) (*Instance, error) {
	inst, ok := r.lookup(id)
	if !ok {
		return nil, errs.MapNotFound(id)
	}
	return inst, nil
}

func (r *Registry) lookup(id string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	return inst, ok
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
}

// List returns the live map identifiers, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of live maps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.instances)
}

// Close destroys every map.
func (r *Registry) Close(ctx context.Context) error {
	var firstErr error
	for _, id := range r.List() {
		if err := r.Destroy(ctx, id); err != nil && !errs.IsMapNotFound(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Platform returns the platform of the backing provider.
func (r *Registry) Platform() provider.Platform {
	return r.provider.Platform()
}

// ImageCache returns the shared image cache.
func (r *Registry) ImageCache() *imagecache.Cache {
	return r.images
}

// Events returns the event bus instances publish on.
func (r *Registry) Events() *events.Bus {
	return r.bus
}

// SetOptions replaces the options used for future instances.
func (r *Registry) SetOptions(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opts = opts
}

// Options returns the options used for new instances.
func (r *Registry) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.opts
}
