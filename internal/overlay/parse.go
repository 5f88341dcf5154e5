package overlay

import (
	"fmt"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/mapsafe"
)

// ParseLatLng reads a {lat, lng} object.
func ParseLatLng(m map[string]any) (geo.LatLng, error) {
	lat, okLat := mapsafe.Lookup[float64](m, "lat")
	lng, okLng := mapsafe.Lookup[float64](m, "lng")
	if !okLat || !okLng {
		return geo.LatLng{}, fmt.Errorf("lat and lng are required")
	}
	return geo.LatLng{Lat: lat, Lng: lng}, nil
}

// ParseLatLngField reads a required {lat, lng} object under key.
func ParseLatLngField(m map[string]any, key string) (geo.LatLng, error) {
	obj, ok := mapsafe.Map(m, key)
	if !ok {
		return geo.LatLng{}, fmt.Errorf("missing required %q", key)
	}
	p, err := ParseLatLng(obj)
	if err != nil {
		return geo.LatLng{}, fmt.Errorf("%s: %w", key, err)
	}
	return p, nil
}

// ParseBounds reads a {southwest, northeast} object. A center, if present, is
// ignored.
func ParseBounds(m map[string]any) (geo.Bounds, error) {
	sw, err := ParseLatLngField(m, "southwest")
	if err != nil {
		return geo.Bounds{}, err
	}
	ne, err := ParseLatLngField(m, "northeast")
	if err != nil {
		return geo.Bounds{}, err
	}
	return geo.NewBounds(sw, ne), nil
}

// ParseBoundsField reads required bounds under key.
func ParseBoundsField(m map[string]any, key string) (geo.Bounds, error) {
	obj, ok := mapsafe.Map(m, key)
	if !ok {
		return geo.Bounds{}, fmt.Errorf("missing required %q", key)
	}
	b, err := ParseBounds(obj)
	if err != nil {
		return geo.Bounds{}, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parsePath(raw []any) ([]geo.LatLng, error) {
	out := make([]geo.LatLng, 0, len(raw))
	for i, v := range raw {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("point %d is not an object", i)
		}
		p, err := ParseLatLng(obj)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseMarker builds and validates a marker descriptor.
func ParseMarker(m map[string]any) (Marker, error) {
	coord, err := ParseLatLngField(m, "coordinate")
	if err != nil {
		return Marker{}, invalid("marker", err)
	}

	marker := Marker{
		Coordinate: coord,
		Title:      mapsafe.Get(m, "title", ""),
		Snippet:    mapsafe.Get(m, "snippet", ""),
		Opacity:    mapsafe.Get(m, "opacity", 1.0),
		IsFlat:     mapsafe.Get(m, "isFlat", false),
		Draggable:  mapsafe.Get(m, "draggable", false),
		ZIndex:     mapsafe.Get(m, "zIndex", 0.0),
		IconURL:    mapsafe.Get(m, "iconUrl", ""),
		ColorHue:   mapsafe.Ptr[float64](m, "colorHue"),
	}
	if size, ok := mapsafe.Map(m, "iconSize"); ok {
		marker.IconSize = &Size{
			Width:  mapsafe.Get(size, "width", 0.0),
			Height: mapsafe.Get(size, "height", 0.0),
		}
	}
	if anchor, ok := mapsafe.Map(m, "iconAnchor"); ok {
		marker.IconAnchor = &Offset{X: mapsafe.Get(anchor, "x", 0.0), Y: mapsafe.Get(anchor, "y", 0.0)}
	}
	if origin, ok := mapsafe.Map(m, "iconOrigin"); ok {
		marker.IconOrigin = &Offset{X: mapsafe.Get(origin, "x", 0.0), Y: mapsafe.Get(origin, "y", 0.0)}
	}
	if tint, ok := mapsafe.Map(m, "tintColor"); ok {
		marker.TintColor = &Color{
			R: mapsafe.Get(tint, "r", 0),
			G: mapsafe.Get(tint, "g", 0),
			B: mapsafe.Get(tint, "b", 0),
			A: mapsafe.Get(tint, "a", 1.0),
		}
	}

	if err := marker.Validate(); err != nil {
		return Marker{}, invalid("marker", err)
	}
	return marker, nil
}

// ParsePolygon builds and validates a polygon descriptor. Paths may be a
// single ring or a list of rings.
func ParsePolygon(m map[string]any) (Polygon, error) {
	raw, ok := mapsafe.Slice(m, "paths")
	if !ok {
		return Polygon{}, invalid("polygon", fmt.Errorf("missing required %q", "paths"))
	}

	var rings [][]geo.LatLng
	if len(raw) > 0 {
		if _, nested := raw[0].([]any); nested {
			for i, r := range raw {
				ringRaw, ok := r.([]any)
				if !ok {
					return Polygon{}, invalid("polygon", fmt.Errorf("ring %d is not an array", i))
				}
				ring, err := parsePath(ringRaw)
				if err != nil {
					return Polygon{}, invalid("polygon", fmt.Errorf("ring %d: %w", i, err))
				}
				rings = append(rings, ring)
			}
		} else {
			ring, err := parsePath(raw)
			if err != nil {
				return Polygon{}, invalid("polygon", err)
			}
			rings = append(rings, ring)
		}
	}

	p := Polygon{
		Paths:         rings,
		StrokeColor:   mapsafe.Get(m, "strokeColor", ""),
		StrokeOpacity: mapsafe.Get(m, "strokeOpacity", 1.0),
		StrokeWeight:  mapsafe.Get(m, "strokeWeight", 1.0),
		FillColor:     mapsafe.Get(m, "fillColor", ""),
		FillOpacity:   mapsafe.Get(m, "fillOpacity", 1.0),
		Geodesic:      mapsafe.Get(m, "geodesic", false),
		Clickable:     mapsafe.Get(m, "clickable", false),
		ZIndex:        mapsafe.Get(m, "zIndex", 0.0),
		Tag:           mapsafe.Get(m, "tag", ""),
	}
	if err := p.Validate(); err != nil {
		return Polygon{}, invalid("polygon", err)
	}
	return p, nil
}

// ParseCircle builds and validates a circle descriptor.
func ParseCircle(m map[string]any) (Circle, error) {
	center, err := ParseLatLngField(m, "center")
	if err != nil {
		return Circle{}, invalid("circle", err)
	}
	c := Circle{
		Center:       center,
		Radius:       mapsafe.Get(m, "radius", 0.0),
		StrokeColor:  mapsafe.Get(m, "strokeColor", ""),
		StrokeWeight: mapsafe.Get(m, "strokeWeight", 1.0),
		FillColor:    mapsafe.Get(m, "fillColor", ""),
		Clickable:    mapsafe.Get(m, "clickable", false),
		ZIndex:       mapsafe.Get(m, "zIndex", 0.0),
		Tag:          mapsafe.Get(m, "tag", ""),
	}
	if err := c.Validate(); err != nil {
		return Circle{}, invalid("circle", err)
	}
	return c, nil
}

// ParsePolyline builds and validates a polyline descriptor.
func ParsePolyline(m map[string]any) (Polyline, error) {
	raw, ok := mapsafe.Slice(m, "path")
	if !ok {
		return Polyline{}, invalid("polyline", fmt.Errorf("missing required %q", "path"))
	}
	path, err := parsePath(raw)
	if err != nil {
		return Polyline{}, invalid("polyline", err)
	}

	p := Polyline{
		Path:        path,
		StrokeColor: mapsafe.Get(m, "strokeColor", ""),
		StrokeWidth: mapsafe.Get(m, "strokeWidth", 1.0),
		Geodesic:    mapsafe.Get(m, "geodesic", false),
		Clickable:   mapsafe.Get(m, "clickable", false),
		ZIndex:      mapsafe.Get(m, "zIndex", 0.0),
		Tag:         mapsafe.Get(m, "tag", ""),
	}
	if spans, ok := mapsafe.Slice(m, "styleSpans"); ok {
		for i, s := range spans {
			obj, ok := s.(map[string]any)
			if !ok {
				return Polyline{}, invalid("polyline", fmt.Errorf("styleSpans[%d] is not an object", i))
			}
			p.StyleSpans = append(p.StyleSpans, StyleSpan{
				Color:    mapsafe.Get(obj, "color", ""),
				Segments: mapsafe.Get(obj, "segments", 1.0),
			})
		}
	}
	if err := p.Validate(); err != nil {
		return Polyline{}, invalid("polyline", err)
	}
	return p, nil
}

// ParseTileLayer builds and validates a tile layer descriptor.
func ParseTileLayer(m map[string]any, defaultMaxZoom int) (TileLayer, error) {
	if defaultMaxZoom <= 0 {
		defaultMaxZoom = DefaultTileMaxZoom
	}
	t := TileLayer{
		TileURL: mapsafe.Get(m, "tileUrl", ""),
		Opacity: mapsafe.Get(m, "opacity", 1.0),
		MaxZoom: mapsafe.Get(m, "maxZoom", defaultMaxZoom),
		ZIndex:  mapsafe.Get(m, "zIndex", 0.0),
		Visible: mapsafe.Get(m, "visible", true),
	}
	if err := t.Validate(); err != nil {
		return TileLayer{}, invalid("tile layer", err)
	}
	return t, nil
}

// ParseGroundOverlay builds and validates a single ground overlay descriptor.
func ParseGroundOverlay(m map[string]any) (GroundOverlay, error) {
	if !mapsafe.Has(m, "imageUrl") {
		return GroundOverlay{}, invalid("ground overlay", fmt.Errorf("missing required %q", "imageUrl"))
	}
	bounds, err := ParseBoundsField(m, "bounds")
	if err != nil {
		return GroundOverlay{}, invalid("ground overlay", err)
	}
	g := GroundOverlay{
		ImageURL: mapsafe.Get(m, "imageUrl", ""),
		Bounds:   bounds,
		Opacity:  mapsafe.Get(m, "opacity", 1.0),
	}
	if err := g.Validate(); err != nil {
		return GroundOverlay{}, invalid("ground overlay", err)
	}
	return g, nil
}

// ParseMultipleGroundOverlays builds and validates the indexed payload.
func ParseMultipleGroundOverlays(m map[string]any) (MultipleGroundOverlays, error) {
	urls, ok := mapsafe.Strings(m, "imageUrl")
	if !ok {
		return MultipleGroundOverlays{}, invalid("ground overlays", fmt.Errorf("imageUrl must be an array of strings"))
	}
	rawBounds, ok := mapsafe.Slice(m, "bounds")
	if !ok {
		return MultipleGroundOverlays{}, invalid("ground overlays", fmt.Errorf("bounds must be an array"))
	}
	if len(urls) != len(rawBounds) {
		return MultipleGroundOverlays{}, invalid("ground overlays",
			fmt.Errorf("mismatched imageUrl and bounds count: %d != %d", len(urls), len(rawBounds)))
	}

	bounds := make([]geo.Bounds, 0, len(rawBounds))
	for i, rb := range rawBounds {
		obj, ok := rb.(map[string]any)
		if !ok {
			return MultipleGroundOverlays{}, invalid("ground overlays", fmt.Errorf("bounds[%d] is not an object", i))
		}
		b, err := ParseBounds(obj)
		if err != nil {
			return MultipleGroundOverlays{}, invalid("ground overlays", fmt.Errorf("bounds[%d]: %w", i, err))
		}
		bounds = append(bounds, b)
	}

	mg := MultipleGroundOverlays{
		ImageURLs: urls,
		Bounds:    bounds,
		Opacity:   mapsafe.Get(m, "opacity", 1.0),
	}
	if err := mg.Validate(); err != nil {
		return MultipleGroundOverlays{}, invalid("ground overlays", err)
	}
	return mg, nil
}

// ParseList applies parse to every element of a payload array. The error
// names the index of the first failing element.
func ParseList[D any](raw []any, parse func(map[string]any) (D, error)) ([]D, error) {
	out := make([]D, 0, len(raw))
	for i, v := range raw {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, errs.InvalidArguments("entry %d is not an object", i).WithDetail("index", i)
		}
		d, err := parse(obj)
		if err != nil {
			return nil, errs.InvalidArguments("entry %d: %v", i, err).WithDetail("index", i).WithCause(err)
		}
		out = append(out, d)
	}
	return out, nil
}

func invalid(what string, err error) error {
	return errs.InvalidArguments("invalid %s: %v", what, err)
}
