package maps

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/mapbridge/internal/cluster"
	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/groundoverlay"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
	"github.com/ekisa-team/mapbridge/internal/uiloop"
)

type (
	markerRegistry   = overlay.Registry[overlay.Marker, provider.Handle]
	polygonRegistry  = overlay.Registry[overlay.Polygon, provider.Handle]
	circleRegistry   = overlay.Registry[overlay.Circle, provider.Handle]
	polylineRegistry = overlay.Registry[overlay.Polyline, provider.Handle]
	tileRegistry     = overlay.Registry[overlay.TileLayer, provider.TileHandle]
)

// MarkerEntry is a registered marker.
type MarkerEntry = overlay.Entry[overlay.Marker, provider.Handle]

// Instance is one live map: a provider surface plus the registries of the
// overlays on it. Every surface call runs on the instance's ui loop.
type Instance struct {
	id       string
	cfg      provider.Config
	platform provider.Platform
	opts     Options
	images   *imagecache.Cache
	bus      *events.Bus
	loop     *uiloop.Loop

	alive atomic.Bool

	// Owned by the loop.
	surface     provider.Surface
	ready       bool
	markers     *markerRegistry
	polygons    *polygonRegistry
	circles     *circleRegistry
	polylines   *polylineRegistry
	tiles       *tileRegistry
	currentTile string
	grounds     *groundoverlay.Slot
	cluster     *cluster.Coordinator
}

func newInstance(ctx context.Context, id string, cfg provider.Config, p provider.Provider, images *imagecache.Cache, bus *events.Bus, opts Options) (*Instance, error) {
	inst := &Instance{
		id:        id,
		cfg:       cfg,
		platform:  p.Platform(),
		opts:      opts,
		images:    images,
		bus:       bus,
		loop:      uiloop.New("map:" + id),
		markers:   overlay.NewRegistry[overlay.Marker, provider.Handle](errs.EntityMarker),
		polygons:  overlay.NewRegistry[overlay.Polygon, provider.Handle](errs.EntityPolygon),
		circles:   overlay.NewRegistry[overlay.Circle, provider.Handle](errs.EntityCircle),
		polylines: overlay.NewRegistry[overlay.Polyline, provider.Handle](errs.EntityPolyline),
		tiles:     overlay.NewRegistry[overlay.TileLayer, provider.TileHandle](errs.EntityTile),
	}
	inst.alive.Store(true)

	err := inst.loop.Do(ctx, func() error {
		s, err := p.NewSurface(ctx, id, cfg, inst.onRawEvent)
		if err != nil {
			return err
		}
		inst.surface = s
		inst.grounds = groundoverlay.New(s, images, inst.run)
		return nil
	})
	if err != nil {
		inst.alive.Store(false)
		inst.loop.Stop()
		if errs.KindOf(err) == errs.KindInternal {
			return nil, errs.Internal("failed to create map surface", err)
		}
		return nil, err
	}
	return inst, nil
}

// ID returns the map identifier.
func (i *Instance) ID() string {
	return i.id
}

// Config returns the creation snapshot.
func (i *Instance) Config() provider.Config {
	return i.cfg
}

// Platform returns the platform of the backing provider.
func (i *Instance) Platform() provider.Platform {
	return i.platform
}

// Alive reports whether the instance has not been destroyed.
func (i *Instance) Alive() bool {
	return i.alive.Load()
}

// destroy releases the surface and every overlay, then stops the loop. When it
// returns no continuation can reach the surface any more.
func (i *Instance) destroy(ctx context.Context) error {
	err := i.loop.Do(ctx, func() error {
		i.alive.Store(false)
		if i.cluster != nil {
			i.cluster.Teardown()
			i.cluster = nil
		}
		i.markers.Clear()
		i.polygons.Clear()
		i.circles.Clear()
		i.polylines.Clear()
		i.tiles.Clear()
		i.currentTile = ""
		i.grounds.Close()
		i.surface.Release()
		return nil
	})
	i.loop.Stop()
	if err != nil && !errors.Is(err, uiloop.ErrStopped) {
		return err
	}
	return nil
}

// exec runs fn on the loop once the surface is usable.
func (i *Instance) exec(ctx context.Context, fn func() error) error {
	err := i.loop.Do(ctx, func() error {
		if !i.alive.Load() {
			return errs.MapNotFound(i.id)
		}
		if !i.ready {
			return errs.ProviderUnavailable(i.id)
		}
		return fn()
	})
	var e *errs.Error
	switch {
	case errors.Is(err, uiloop.ErrStopped):
		return errs.MapNotFound(i.id)
	case errors.As(err, &e):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.Canceled(i.id, err)
	}
	return err
}

// run is the ground overlay slot's runner. A map destroyed while an image
// was loading surfaces as MapNotFound and the continuation is dropped.
func (i *Instance) run(ctx context.Context, fn func() error) error {
	return i.exec(ctx, fn)
}

// icon resolves a marker icon. Failures fall back to the default marker.
func (i *Instance) icon(ctx context.Context, url string) *imagecache.Image {
	if url == "" {
		return nil
	}
	img, err := i.images.Get(ctx, url)
	if err != nil {
		slog.Warn("Failed to load marker icon, using default", "map_id", i.id, "url", url, "error", err)
		return nil
	}
	return img
}

func (i *Instance) cachedIcon(url string) *imagecache.Image {
	if url == "" {
		return nil
	}
	img, _ := i.images.Peek(url)
	return img
}

// buildMarker attaches a marker, or leaves it detached while clustering.
func (i *Instance) buildMarker() overlay.BuildFunc[overlay.Marker, provider.Handle] {
	return func(m overlay.Marker) (provider.Handle, error) {
		if i.cluster != nil {
			return nil, nil
		}
		return i.surface.AddMarker(m, i.cachedIcon(m.IconURL))
	}
}

// AddMarker attaches one marker and returns its identifier.
func (i *Instance) AddMarker(ctx context.Context, m overlay.Marker) (string, error) {
	if err := m.Validate(); err != nil {
		return "", errs.InvalidArguments("invalid marker: %v", err)
	}
	i.icon(ctx, m.IconURL)

	var id string
	err := i.exec(ctx, func() error {
		var err error
		id, err = i.markers.Add(m, i.buildMarker())
		if err != nil {
			return err
		}
		if i.cluster != nil {
			i.cluster.Add(cluster.Item{ID: id, Marker: m})
		}
		return nil
	})
	return id, err
}

// AddMarkers attaches every marker or none. Icons are resolved concurrently
// before anything is attached.
func (i *Instance) AddMarkers(ctx context.Context, ms []overlay.Marker) ([]string, error) {
	for idx, m := range ms {
		if err := m.Validate(); err != nil {
			return nil, errs.InvalidArguments("invalid marker at index %d: %v", idx, err).WithDetail("index", idx)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, m := range ms {
		if m.IconURL == "" {
			continue
		}
		g.Go(func() error {
			i.icon(gctx, m.IconURL)
			return nil
		})
	}
	_ = g.Wait()

	var ids []string
	err := i.exec(ctx, func() error {
		var err error
		ids, err = i.markers.AddBatch(ms, i.buildMarker())
		if err != nil {
			return err
		}
		if i.cluster != nil {
			items := make([]cluster.Item, len(ids))
			for idx, id := range ids {
				items[idx] = cluster.Item{ID: id, Marker: ms[idx]}
			}
			i.cluster.Add(items...)
		}
		return nil
	})
	return ids, err
}

// RemoveMarker detaches one marker. Unknown ids fail with EntityNotFound.
func (i *Instance) RemoveMarker(ctx context.Context, id string) error {
	return i.exec(ctx, func() error {
		if err := i.markers.Remove(id); err != nil {
			return err
		}
		if i.cluster != nil {
			i.cluster.Remove(id)
		}
		return nil
	})
}

// RemoveMarkers detaches the known ids and skips the rest.
func (i *Instance) RemoveMarkers(ctx context.Context, ids []string) error {
	return i.exec(ctx, func() error {
		removed := i.markers.RemoveBatch(ids)
		if i.cluster != nil && len(removed) > 0 {
			i.cluster.Remove(removed...)
		}
		return nil
	})
}

// Markers returns the registered markers in insertion order.
func (i *Instance) Markers() []MarkerEntry {
	return i.markers.Entries()
}

// AddPolygons attaches every polygon or none.
func (i *Instance) AddPolygons(ctx context.Context, ps []overlay.Polygon) ([]string, error) {
	var ids []string
	err := i.exec(ctx, func() error {
		var err error
		ids, err = i.polygons.AddBatch(ps, i.surface.AddPolygon)
		return err
	})
	return ids, err
}

// RemovePolygons detaches the known polygon ids and skips the rest.
func (i *Instance) RemovePolygons(ctx context.Context, ids []string) error {
	return i.exec(ctx, func() error {
		i.polygons.RemoveBatch(ids)
		return nil
	})
}

// AddCircles attaches every circle or none.
func (i *Instance) AddCircles(ctx context.Context, cs []overlay.Circle) ([]string, error) {
	var ids []string
	err := i.exec(ctx, func() error {
		var err error
		ids, err = i.circles.AddBatch(cs, i.surface.AddCircle)
		return err
	})
	return ids, err
}

// RemoveCircles detaches the known circle ids and skips the rest.
func (i *Instance) RemoveCircles(ctx context.Context, ids []string) error {
	return i.exec(ctx, func() error {
		i.circles.RemoveBatch(ids)
		return nil
	})
}

// AddPolylines attaches every polyline or none.
func (i *Instance) AddPolylines(ctx context.Context, ls []overlay.Polyline) ([]string, error) {
	var ids []string
	err := i.exec(ctx, func() error {
		var err error
		ids, err = i.polylines.AddBatch(ls, i.surface.AddPolyline)
		return err
	})
	return ids, err
}

// RemovePolylines detaches the known polyline ids and skips the rest.
func (i *Instance) RemovePolylines(ctx context.Context, ids []string) error {
	return i.exec(ctx, func() error {
		i.polylines.RemoveBatch(ids)
		return nil
	})
}

// AddTileLayer attaches a tile layer and makes it the current one.
func (i *Instance) AddTileLayer(ctx context.Context, t overlay.TileLayer) (string, error) {
	var id string
	err := i.exec(ctx, func() error {
		var err error
		id, err = i.tiles.Add(t, i.surface.AddTileLayer)
		if err != nil {
			return err
		}
		i.currentTile = id
		return nil
	})
	return id, err
}

// RemoveTileLayer detaches a tile layer. An empty id removes the current
// layer and is a no-op when there is none.
func (i *Instance) RemoveTileLayer(ctx context.Context, id string) error {
	return i.exec(ctx, func() error {
		if id == "" {
			if i.currentTile == "" {
				return nil
			}
			id = i.currentTile
		}
		if err := i.tiles.Remove(id); err != nil {
			return err
		}
		if id == i.currentTile {
			i.currentTile = ""
		}
		return nil
	})
}

// RemoveAllTileLayers detaches every tile layer.
func (i *Instance) RemoveAllTileLayers(ctx context.Context) error {
	return i.exec(ctx, func() error {
		i.tiles.Clear()
		i.currentTile = ""
		return nil
	})
}

// SetTileLayerOpacity changes the opacity of the current tile layer. The value
// is clamped to [0, 1].
func (i *Instance) SetTileLayerOpacity(ctx context.Context, opacity float64) error {
	opacity = min(max(opacity, 0), 1)
	return i.exec(ctx, func() error {
		if i.currentTile == "" {
			return errs.NotFound(errs.EntityTile, "current")
		}
		e, ok := i.tiles.Get(i.currentTile)
		if !ok {
			return errs.NotFound(errs.EntityTile, i.currentTile)
		}
		e.Handle.SetOpacity(opacity)
		return nil
	})
}

// CurrentTileLayer returns the id of the current tile layer, or "".
func (i *Instance) CurrentTileLayer(ctx context.Context) (string, error) {
	var id string
	err := i.exec(ctx, func() error {
		id = i.currentTile
		return nil
	})
	return id, err
}

// UpsertGroundOverlay creates or updates the current ground overlay.
func (i *Instance) UpsertGroundOverlay(ctx context.Context, g overlay.GroundOverlay) (string, error) {
	if err := i.checkUsable(ctx); err != nil {
		return "", err
	}
	return i.grounds.Upsert(ctx, g)
}

// UpsertGroundOverlays applies an indexed ground overlay payload.
func (i *Instance) UpsertGroundOverlays(ctx context.Context, m overlay.MultipleGroundOverlays) (string, error) {
	if err := i.checkUsable(ctx); err != nil {
		return "", err
	}
	return i.grounds.UpsertMany(ctx, m)
}

// SetOverlayOpacity changes the ground overlay opacity.
func (i *Instance) SetOverlayOpacity(ctx context.Context, opacity float64) error {
	return i.grounds.SetOpacity(ctx, opacity)
}

// SetCurrentOverlayImage swaps the image of the current ground overlay.
func (i *Instance) SetCurrentOverlayImage(ctx context.Context, url string, opacity float64) error {
	return i.grounds.SetCurrentImage(ctx, url, opacity)
}

// RemoveGroundOverlay detaches one ground overlay by id. An empty id removes
// the current overlay.
func (i *Instance) RemoveGroundOverlay(ctx context.Context, id string) error {
	if id == "" {
		return i.grounds.RemoveCurrent(ctx)
	}
	return i.grounds.Remove(ctx, id)
}

// RemoveAllGroundOverlays detaches every ground overlay.
func (i *Instance) RemoveAllGroundOverlays(ctx context.Context) error {
	return i.grounds.RemoveAll(ctx)
}

// GroundOverlays returns the ground overlay slot.
func (i *Instance) GroundOverlays() *groundoverlay.Slot {
	return i.grounds
}

// checkUsable fails fast before image work starts on a map that is gone or
// not ready.
func (i *Instance) checkUsable(ctx context.Context) error {
	return i.exec(ctx, func() error { return nil })
}

// EnableClustering hands every marker to a coordinator. Enabling again with
// the same minimum size is a no-op; a different size rebuilds the coordinator.
func (i *Instance) EnableClustering(ctx context.Context, minClusterSize int) error {
	if minClusterSize <= 0 {
		minClusterSize = i.opts.Cluster.MinClusterSize
	}
	return i.exec(ctx, func() error {
		if i.cluster != nil {
			if i.cluster.MinClusterSize() == minClusterSize {
				return nil
			}
			i.cluster.Teardown()
			i.cluster = nil
		}

		entries := i.markers.Entries()
		items := make([]cluster.Item, 0, len(entries))
		for _, e := range entries {
			if err := i.markers.Detach(e.ID); err != nil {
				return err
			}
			items = append(items, cluster.Item{ID: e.ID, Marker: e.Descriptor})
		}

		opts := i.opts.Cluster
		opts.MinClusterSize = minClusterSize
		i.cluster = cluster.New(opts, i.surface, i.loop.Post)
		i.cluster.Add(items...)

		slog.Info("Clustering enabled", "map_id", i.id, "min_cluster_size", minClusterSize, "markers", len(items))
		return nil
	})
}

// DisableClustering re-attaches every marker directly. It is a no-op when
// clustering is off.
func (i *Instance) DisableClustering(ctx context.Context) error {
	return i.exec(ctx, func() error {
		if i.cluster == nil {
			return nil
		}
		i.cluster.Teardown()
		i.cluster = nil

		for _, e := range i.markers.Entries() {
			h, err := i.surface.AddMarker(e.Descriptor, i.cachedIcon(e.Descriptor.IconURL))
			if err != nil {
				return errs.Internal("failed to re-attach marker "+e.ID, err)
			}
			if err := i.markers.Rebind(e.ID, h); err != nil {
				return err
			}
		}
		slog.Info("Clustering disabled", "map_id", i.id)
		return nil
	})
}

// ClusterState reports whether clustering is on, its minimum size and how
// many times the groups were recomputed.
type ClusterState struct {
	Enabled        bool
	MinClusterSize int
	Recomputes     int64
	Views          int
}

// Clustering returns the current cluster state.
func (i *Instance) Clustering(ctx context.Context) (ClusterState, error) {
	var st ClusterState
	err := i.exec(ctx, func() error {
		if i.cluster != nil {
			st = ClusterState{
				Enabled:        true,
				MinClusterSize: i.cluster.MinClusterSize(),
				Recomputes:     i.cluster.Recomputes(),
				Views:          i.cluster.Views(),
			}
		}
		return nil
	})
	return st, err
}

// SetCamera moves the camera. Fields left nil keep their current value.
func (i *Instance) SetCamera(ctx context.Context, u provider.CameraUpdate) error {
	if u.Coordinate != nil {
		if err := u.Coordinate.Validate(); err != nil {
			return errs.InvalidArguments("invalid coordinate: %v", err)
		}
	}
	return i.exec(ctx, func() error {
		return i.surface.MoveCamera(u.Apply(i.surface.Camera()), u.Animate)
	})
}

// Camera returns the current camera.
func (i *Instance) Camera(ctx context.Context) (provider.Camera, error) {
	var c provider.Camera
	err := i.exec(ctx, func() error {
		c = i.surface.Camera()
		return nil
	})
	return c, err
}

// UpdateMapOptions applies zoom, center and styles.
func (i *Instance) UpdateMapOptions(ctx context.Context, o provider.Options) error {
	return i.exec(ctx, func() error {
		return i.surface.SetOptions(o)
	})
}

// MapType returns the base map type.
func (i *Instance) MapType(ctx context.Context) (provider.MapType, error) {
	var t provider.MapType
	err := i.exec(ctx, func() error {
		t = i.surface.MapType()
		return nil
	})
	return t, err
}

// SetMapType changes the base map type.
func (i *Instance) SetMapType(ctx context.Context, t provider.MapType) error {
	return i.exec(ctx, func() error {
		return i.surface.SetMapType(t)
	})
}

// EnableIndoorMaps toggles indoor floor plans.
func (i *Instance) EnableIndoorMaps(ctx context.Context, enabled bool) error {
	return i.exec(ctx, func() error {
		return i.surface.SetIndoorEnabled(enabled)
	})
}

// EnableTrafficLayer toggles the traffic layer.
func (i *Instance) EnableTrafficLayer(ctx context.Context, enabled bool) error {
	return i.exec(ctx, func() error {
		return i.surface.SetTrafficEnabled(enabled)
	})
}

// EnableCurrentLocation toggles the my-location layer.
func (i *Instance) EnableCurrentLocation(ctx context.Context, enabled bool) error {
	return i.exec(ctx, func() error {
		return i.surface.SetMyLocationEnabled(enabled)
	})
}

// EnableAccessibilityElements toggles accessibility elements.
func (i *Instance) EnableAccessibilityElements(ctx context.Context, enabled bool) error {
	return i.exec(ctx, func() error {
		return i.surface.SetAccessibilityElements(enabled)
	})
}

// SetPadding changes the map padding.
func (i *Instance) SetPadding(ctx context.Context, p provider.Padding) error {
	return i.exec(ctx, func() error {
		return i.surface.SetPadding(p)
	})
}

// SetTouchEnabled toggles user interaction with the map.
func (i *Instance) SetTouchEnabled(ctx context.Context, enabled bool) error {
	return i.exec(ctx, func() error {
		return i.surface.SetTouchEnabled(enabled)
	})
}

// Bounds returns the visible region.
func (i *Instance) Bounds(ctx context.Context) (geo.Bounds, error) {
	var b geo.Bounds
	err := i.exec(ctx, func() error {
		var err error
		b, err = i.surface.VisibleBounds()
		return err
	})
	return b, err
}

// FitBounds moves the camera so that b is visible.
func (i *Instance) FitBounds(ctx context.Context, b geo.Bounds, padding int) error {
	if err := b.Validate(); err != nil {
		return errs.InvalidArguments("invalid bounds: %v", err)
	}
	return i.exec(ctx, func() error {
		return i.surface.FitBounds(b, padding)
	})
}
