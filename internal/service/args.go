package service

import (
	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
	"github.com/ekisa-team/mapbridge/mapsafe"
)

// ParseConfig reads the creation config of a map. Missing required fields
// are reported by provider.Config.Validate.
func ParseConfig(m map[string]any) (provider.Config, error) {
	cfg := provider.Config{
		Width:            mapsafe.Get(m, "width", 0.0),
		Height:           mapsafe.Get(m, "height", 0.0),
		X:                mapsafe.Get(m, "x", 0.0),
		Y:                mapsafe.Get(m, "y", 0.0),
		Zoom:             mapsafe.Get(m, "zoom", 0.0),
		Bearing:          mapsafe.Get(m, "bearing", 0.0),
		Tilt:             mapsafe.Get(m, "tilt", 0.0),
		StyleID:          mapsafe.Get(m, "mapId", ""),
		DevicePixelRatio: mapsafe.Get(m, "devicePixelRatio", 1.0),
	}
	if styles, ok := mapsafe.Slice(m, "styles"); ok {
		cfg.Styles = styles
	}

	center, ok := mapsafe.Map(m, "center")
	if !ok {
		return provider.Config{}, errs.InvalidConfiguration("center is required")
	}
	p, err := overlay.ParseLatLng(center)
	if err != nil {
		return provider.Config{}, errs.InvalidConfiguration("invalid center: %v", err)
	}
	cfg.Center = p

	if s, ok := mapsafe.Lookup[string](m, "mapType"); ok {
		cfg.MapType, _ = provider.ParseMapType(s)
	} else {
		cfg.MapType = provider.MapTypeNormal
	}
	if pm, ok := mapsafe.Map(m, "padding"); ok {
		cfg.Padding = ParsePadding(pm)
	}
	return cfg, cfg.Validate()
}

// ParsePadding reads a {top, bottom, left, right} object. Missing sides are 0.
func ParsePadding(m map[string]any) provider.Padding {
	return provider.Padding{
		Top:    mapsafe.Get(m, "top", 0),
		Bottom: mapsafe.Get(m, "bottom", 0),
		Left:   mapsafe.Get(m, "left", 0),
		Right:  mapsafe.Get(m, "right", 0),
	}
}

// ParseCameraUpdate reads a camera config. Every field is optional.
func ParseCameraUpdate(m map[string]any) (provider.CameraUpdate, error) {
	u := provider.CameraUpdate{
		Zoom:    mapsafe.Ptr[float64](m, "zoom"),
		Bearing: mapsafe.Ptr[float64](m, "bearing"),
		Angle:   mapsafe.Ptr[float64](m, "angle"),
		Animate: mapsafe.Get(m, "animate", false),
	}
	if mapsafe.Has(m, "coordinate") {
		p, err := overlay.ParseLatLngField(m, "coordinate")
		if err != nil {
			return provider.CameraUpdate{}, errs.InvalidArguments("invalid camera: %v", err)
		}
		u.Coordinate = &p
	}
	if u.Zoom != nil && *u.Zoom < 0 {
		return provider.CameraUpdate{}, errs.InvalidArguments("invalid camera: zoom must not be negative")
	}
	return u, nil
}

// ParseOptions reads the runtime options of updateMapOptions.
func ParseOptions(m map[string]any) (provider.Options, error) {
	o := provider.Options{Zoom: mapsafe.Ptr[float64](m, "zoom")}
	if styles, ok := mapsafe.Slice(m, "styles"); ok {
		o.Styles = styles
	}
	if mapsafe.Has(m, "center") {
		p, err := overlay.ParseLatLngField(m, "center")
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			return provider.Options{}, errs.InvalidArguments("invalid options: %v", err)
		}
		o.Center = &p
	}
	return o, nil
}

func requireObject(args map[string]any, key string) (map[string]any, error) {
	m, ok := mapsafe.Map(args, key)
	if !ok {
		return nil, errs.InvalidArguments("%s object is missing", key)
	}
	return m, nil
}

func requireList(args map[string]any, key string) ([]any, error) {
	l, ok := mapsafe.Slice(args, key)
	if !ok {
		return nil, errs.InvalidArguments("%s array is missing", key)
	}
	return l, nil
}

func requireStrings(args map[string]any, key string) ([]string, error) {
	l, ok := mapsafe.Strings(args, key)
	if !ok {
		return nil, errs.InvalidArguments("%s must be an array of strings", key)
	}
	return l, nil
}

func requireString(args map[string]any, key string) (string, error) {
	s, ok := mapsafe.Lookup[string](args, key)
	if !ok || s == "" {
		return "", errs.InvalidArguments("%s is missing", key)
	}
	return s, nil
}

func requireBool(args map[string]any, key string) (bool, error) {
	b, ok := mapsafe.Lookup[bool](args, key)
	if !ok {
		return false, errs.InvalidArguments("%s is missing", key)
	}
	return b, nil
}

func requireFloat(args map[string]any, key string) (float64, error) {
	f, ok := mapsafe.Lookup[float64](args, key)
	if !ok {
		return 0, errs.InvalidArguments("%s is missing", key)
	}
	return f, nil
}

func boundsAndPoint(args map[string]any) (geo.Bounds, geo.LatLng, error) {
	b, err := overlay.ParseBoundsField(args, "bounds")
	if err != nil {
		return geo.Bounds{}, geo.LatLng{}, errs.InvalidArguments("%v", err)
	}
	p, err := overlay.ParseLatLngField(args, "point")
	if err != nil {
		return geo.Bounds{}, geo.LatLng{}, errs.InvalidArguments("%v", err)
	}
	return b, p, nil
}
