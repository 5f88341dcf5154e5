// Package service exposes the bridge command surface: named methods taking
// loosely typed argument objects, resolved against the map registry.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/maps"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
	"github.com/ekisa-team/mapbridge/mapsafe"
)

// Result is the object a method resolves with.
type Result = map[string]any

type (
	handlerFunc func(ctx context.Context, args map[string]any) (Result, error)
	mapFunc     func(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error)
)

// Maps is the command surface over a map registry.
type Maps struct {
	registry *maps.Registry
	methods  map[string]handlerFunc
}

// NewMaps creates the command surface.
func NewMaps(registry *maps.Registry) *Maps {
	s := &Maps{registry: registry}
	s.methods = map[string]handlerFunc{
		"create":                      s.create,
		"destroy":                     s.destroy,
		"enableTouch":                 s.onMap(touch(true)),
		"disableTouch":                s.onMap(touch(false)),
		"updateMapOptions":            s.onMap(updateMapOptions),
		"addMarker":                   s.onMap(addMarker),
		"addMarkers":                  s.onMap(addMarkers),
		"removeMarker":                s.onMap(removeMarker),
		"removeMarkers":               s.onMap(removeMarkers),
		"addPolygons":                 s.onMap(addPolygons),
		"removePolygons":              s.onMap(removeIDs("polygonIds", (*maps.Instance).RemovePolygons)),
		"addCircles":                  s.onMap(addCircles),
		"removeCircles":               s.onMap(removeIDs("circleIds", (*maps.Instance).RemoveCircles)),
		"addPolylines":                s.onMap(addPolylines),
		"removePolylines":             s.onMap(removeIDs("polylineIds", (*maps.Instance).RemovePolylines)),
		"addTileLayer":                s.onMap(s.addTileLayer),
		"removeTileLayer":             s.onMap(removeTileLayer),
		"removeAllTileLayers":         s.onMap(removeAllTileLayers),
		"setTileLayerOpacity":         s.onMap(setTileLayerOpacity),
		"addGroundOverlay":            s.onMap(addOrUpdateGroundOverlay),
		"addOrUpdateGroundOverlay":    s.onMap(addOrUpdateGroundOverlay),
		"addMultipleGroundOverlays":   s.onMap(addMultipleGroundOverlays),
		"setOverlayOpacity":           s.onMap(setOverlayOpacity),
		"removeGroundOverlay":         s.onMap(removeGroundOverlay),
		"removeAllGroundOverlays":     s.onMap(removeAllGroundOverlays),
		"setCurrentOverlayImage":      s.onMap(setCurrentOverlayImage),
		"enableClustering":            s.onMap(enableClustering),
		"disableClustering":           s.onMap(disableClustering),
		"setCamera":                   s.onMap(setCamera),
		"getMapType":                  s.onMap(getMapType),
		"setMapType":                  s.onMap(setMapType),
		"enableIndoorMaps":            s.onMap(toggle((*maps.Instance).EnableIndoorMaps)),
		"enableTrafficLayer":          s.onMap(toggle((*maps.Instance).EnableTrafficLayer)),
		"enableCurrentLocation":       s.onMap(toggle((*maps.Instance).EnableCurrentLocation)),
		"enableAccessibilityElements": s.onMap(toggle((*maps.Instance).EnableAccessibilityElements)),
		"setPadding":                  s.onMap(setPadding),
		"getMapBounds":                s.onMap(getMapBounds),
		"fitBounds":                   s.onMap(fitBounds),
		"mapBoundsContains":           mapBoundsContains,
		"mapBoundsExtend":             mapBoundsExtend,
	}
	return s
}

// Registry returns the underlying map registry.
func (s *Maps) Registry() *maps.Registry {
	return s.registry
}

// Methods returns the supported method names, sorted.
func (s *Maps) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs method with args. A nil result is returned as an empty object.
func (s *Maps) Invoke(ctx context.Context, method string, args map[string]any) (Result, error) {
	h, ok := s.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := h(ctx, args)
	if err != nil {
		slog.Debug("Method failed", "method", method, "map_id", mapsafe.Get(args, "id", ""), "kind", errs.KindOf(err), "error", err)
		return nil, err
	}
	if res == nil {
		res = Result{}
	}
	return res, nil
}

// Create creates a map, see maps.Registry.Create.
func (s *Maps) Create(ctx context.Context, id string, cfg provider.Config, force bool) error {
	_, err := s.registry.Create(ctx, id, cfg, force)
	return err
}

// Destroy destroys a map.
func (s *Maps) Destroy(ctx context.Context, id string) error {
	return s.registry.Destroy(ctx, id)
}

// Map resolves a live map.
func (s *Maps) Map(id string) (*maps.Instance, error) {
	return s.registry.Get(id)
}

// BoundsContains reports whether p lies inside b.
func BoundsContains(b geo.Bounds, p geo.LatLng) bool {
	return b.Contains(p)
}

// BoundsExtend returns the smallest bounds containing b and p.
func BoundsExtend(b geo.Bounds, p geo.LatLng) geo.Bounds {
	return b.Extend(p)
}

// onMap resolves the map before the payload is looked at, so an unknown map
// always wins over a malformed payload.
func (s *Maps) onMap(fn mapFunc) handlerFunc {
	return func(ctx context.Context, args map[string]any) (Result, error) {
		id, err := requireString(args, "id")
		if err != nil {
			return nil, err
		}
		inst, err := s.registry.Get(id)
		if err != nil {
			return nil, err
		}
		return fn(ctx, inst, args)
	}
}

func (s *Maps) create(ctx context.Context, args map[string]any) (Result, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	raw, ok := mapsafe.Map(args, "config")
	if !ok {
		return nil, errs.InvalidConfiguration("config object is missing")
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return nil, s.Create(ctx, id, cfg, mapsafe.Get(args, "forceCreate", false))
}

func (s *Maps) destroy(ctx context.Context, args map[string]any) (Result, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	return nil, s.Destroy(ctx, id)
}

func touch(enabled bool) mapFunc {
	return func(ctx context.Context, inst *maps.Instance, _ map[string]any) (Result, error) {
		return nil, inst.SetTouchEnabled(ctx, enabled)
	}
}

func toggle(fn func(*maps.Instance, context.Context, bool) error) mapFunc {
	return func(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
		enabled, err := requireBool(args, "enabled")
		if err != nil {
			return nil, err
		}
		return nil, fn(inst, ctx, enabled)
	}
}

func removeIDs(key string, fn func(*maps.Instance, context.Context, []string) error) mapFunc {
	return func(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
		ids, err := requireStrings(args, key)
		if err != nil {
			return nil, err
		}
		return nil, fn(inst, ctx, ids)
	}
}

func updateMapOptions(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "options")
	if err != nil {
		return nil, err
	}
	o, err := ParseOptions(raw)
	if err != nil {
		return nil, err
	}
	return nil, inst.UpdateMapOptions(ctx, o)
}

func addMarker(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "marker")
	if err != nil {
		return nil, err
	}
	m, err := overlay.ParseMarker(raw)
	if err != nil {
		return nil, err
	}
	id, err := inst.AddMarker(ctx, m)
	if err != nil {
		return nil, err
	}
	return Result{"id": id}, nil
}

func addMarkers(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireList(args, "markers")
	if err != nil {
		return nil, err
	}
	ms, err := overlay.ParseList(raw, overlay.ParseMarker)
	if err != nil {
		return nil, err
	}
	ids, err := inst.AddMarkers(ctx, ms)
	if err != nil {
		return nil, err
	}
	return idsResult(ids), nil
}

func removeMarker(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	id, err := requireString(args, "markerId")
	if err != nil {
		return nil, err
	}
	return nil, inst.RemoveMarker(ctx, id)
}

func removeMarkers(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	ids, err := requireStrings(args, "markerIds")
	if err != nil {
		return nil, err
	}
	return nil, inst.RemoveMarkers(ctx, ids)
}

func addPolygons(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireList(args, "polygons")
	if err != nil {
		return nil, err
	}
	ps, err := overlay.ParseList(raw, overlay.ParsePolygon)
	if err != nil {
		return nil, err
	}
	ids, err := inst.AddPolygons(ctx, ps)
	if err != nil {
		return nil, err
	}
	return idsResult(ids), nil
}

func addCircles(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireList(args, "circles")
	if err != nil {
		return nil, err
	}
	cs, err := overlay.ParseList(raw, overlay.ParseCircle)
	if err != nil {
		return nil, err
	}
	ids, err := inst.AddCircles(ctx, cs)
	if err != nil {
		return nil, err
	}
	return idsResult(ids), nil
}

func addPolylines(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireList(args, "polylines")
	if err != nil {
		return nil, err
	}
	ls, err := overlay.ParseList(raw, overlay.ParsePolyline)
	if err != nil {
		return nil, err
	}
	ids, err := inst.AddPolylines(ctx, ls)
	if err != nil {
		return nil, err
	}
	return idsResult(ids), nil
}

func (s *Maps) addTileLayer(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "tileLayer")
	if err != nil {
		return nil, err
	}
	t, err := overlay.ParseTileLayer(raw, s.registry.Options().TileMaxZoom)
	if err != nil {
		return nil, err
	}
	id, err := inst.AddTileLayer(ctx, t)
	if err != nil {
		return nil, err
	}
	return Result{"id": id}, nil
}

func removeTileLayer(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	return nil, inst.RemoveTileLayer(ctx, mapsafe.Get(args, "tileId", ""))
}

func removeAllTileLayers(ctx context.Context, inst *maps.Instance, _ map[string]any) (Result, error) {
	return nil, inst.RemoveAllTileLayers(ctx)
}

func setTileLayerOpacity(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	opacity, err := requireFloat(args, "opacity")
	if err != nil {
		return nil, err
	}
	return nil, inst.SetTileLayerOpacity(ctx, opacity)
}

func addOrUpdateGroundOverlay(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "overlay")
	if err != nil {
		return nil, err
	}
	g, err := overlay.ParseGroundOverlay(raw)
	if err != nil {
		return nil, err
	}
	id, err := inst.UpsertGroundOverlay(ctx, g)
	if err != nil {
		return nil, err
	}
	return Result{"id": id}, nil
}

func addMultipleGroundOverlays(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "overlays")
	if err != nil {
		return nil, err
	}
	m, err := overlay.ParseMultipleGroundOverlays(raw)
	if err != nil {
		return nil, err
	}
	id, err := inst.UpsertGroundOverlays(ctx, m)
	if err != nil {
		return nil, err
	}
	return Result{"id": id}, nil
}

func setOverlayOpacity(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	opacity, err := requireFloat(args, "opacity")
	if err != nil {
		return nil, err
	}
	return nil, inst.SetOverlayOpacity(ctx, opacity)
}

func removeGroundOverlay(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	return nil, inst.RemoveGroundOverlay(ctx, mapsafe.Get(args, "overlayId", ""))
}

func removeAllGroundOverlays(ctx context.Context, inst *maps.Instance, _ map[string]any) (Result, error) {
	return nil, inst.RemoveAllGroundOverlays(ctx)
}

func setCurrentOverlayImage(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	url, err := requireString(args, "imageUrl")
	if err != nil {
		return nil, err
	}
	opacity, err := requireFloat(args, "opacity")
	if err != nil {
		return nil, err
	}
	return nil, inst.SetCurrentOverlayImage(ctx, url, opacity)
}

func enableClustering(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	n := mapsafe.Get(args, "minClusterSize", 0)
	if n < 0 {
		return nil, errs.InvalidArguments("minClusterSize must be positive, got %d", n)
	}
	return nil, inst.EnableClustering(ctx, n)
}

func disableClustering(ctx context.Context, inst *maps.Instance, _ map[string]any) (Result, error) {
	return nil, inst.DisableClustering(ctx)
}

func setCamera(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "config")
	if err != nil {
		return nil, err
	}
	u, err := ParseCameraUpdate(raw)
	if err != nil {
		return nil, err
	}
	return nil, inst.SetCamera(ctx, u)
}

func getMapType(ctx context.Context, inst *maps.Instance, _ map[string]any) (Result, error) {
	t, err := inst.MapType(ctx)
	if err != nil {
		return nil, err
	}
	return Result{"type": string(t)}, nil
}

func setMapType(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	s, err := requireString(args, "mapType")
	if err != nil {
		return nil, err
	}
	t, ok := provider.ParseMapType(s)
	if !ok {
		return nil, errs.InvalidArguments("unknown map type %q", s)
	}
	return nil, inst.SetMapType(ctx, t)
}

func setPadding(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	raw, err := requireObject(args, "padding")
	if err != nil {
		return nil, err
	}
	return nil, inst.SetPadding(ctx, ParsePadding(raw))
}

func getMapBounds(ctx context.Context, inst *maps.Instance, _ map[string]any) (Result, error) {
	b, err := inst.Bounds(ctx)
	if err != nil {
		return nil, err
	}
	return Result{"bounds": events.BoundsData(b)}, nil
}

func fitBounds(ctx context.Context, inst *maps.Instance, args map[string]any) (Result, error) {
	b, err := overlay.ParseBoundsField(args, "bounds")
	if err != nil {
		return nil, errs.InvalidArguments("%v", err)
	}
	return nil, inst.FitBounds(ctx, b, mapsafe.Get(args, "padding", 0))
}

func mapBoundsContains(_ context.Context, args map[string]any) (Result, error) {
	b, p, err := boundsAndPoint(args)
	if err != nil {
		return nil, err
	}
	return Result{"contains": BoundsContains(b, p)}, nil
}

func mapBoundsExtend(_ context.Context, args map[string]any) (Result, error) {
	b, p, err := boundsAndPoint(args)
	if err != nil {
		return nil, err
	}
	return Result{"bounds": events.BoundsData(BoundsExtend(b, p))}, nil
}

func idsResult(ids []string) Result {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return Result{"ids": out}
}
