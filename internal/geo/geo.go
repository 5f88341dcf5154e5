// Package geo holds the coordinate and bounds types shared by every map
// component, backed by orb for the planar math.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate ranges.
func (p LatLng) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

// Point converts to an orb point (x = longitude, y = latitude).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts an orb point back to a coordinate.
func FromPoint(pt orb.Point) LatLng {
	return LatLng{Lat: pt.Lat(), Lng: pt.Lon()}
}

// Bounds is a south-west / north-east box.
type Bounds struct {
	Southwest LatLng `json:"southwest"`
	Northeast LatLng `json:"northeast"`
}

// NewBounds builds bounds from two corners.
func NewBounds(southwest, northeast LatLng) Bounds {
	return Bounds{Southwest: southwest, Northeast: northeast}
}

// Validate checks that both corners are valid and the latitudes ordered. A
// western edge east of the eastern edge is a box crossing the antimeridian.
func (b Bounds) Validate() error {
	if err := b.Southwest.Validate(); err != nil {
		return fmt.Errorf("southwest: %w", err)
	}
	if err := b.Northeast.Validate(); err != nil {
		return fmt.Errorf("northeast: %w", err)
	}
	if b.Southwest.Lat > b.Northeast.Lat {
		return fmt.Errorf("southwest latitude %v is north of northeast latitude %v", b.Southwest.Lat, b.Northeast.Lat)
	}
	return nil
}

// Bound converts to an orb bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: b.Southwest.Point(), Max: b.Northeast.Point()}
}

// CrossesAntimeridian reports whether the box spans the 180th meridian, which
// is the case whenever its western edge lies east of its eastern edge.
func (b Bounds) CrossesAntimeridian() bool {
	return b.Southwest.Lng > b.Northeast.Lng
}

// Center returns the midpoint of the box. The longitude lies in (-180, 180].
func (b Bounds) Center() LatLng {
	if !b.CrossesAntimeridian() {
		return FromPoint(b.Bound().Center())
	}
	span := b.Northeast.Lng - b.Southwest.Lng + 360
	return LatLng{
		Lat: (b.Southwest.Lat + b.Northeast.Lat) / 2,
		Lng: normalizeLng(b.Southwest.Lng + span/2),
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p LatLng) bool {
	if !b.CrossesAntimeridian() {
		return b.Bound().Contains(p.Point())
	}
	if p.Lat < b.Southwest.Lat || p.Lat > b.Northeast.Lat {
		return false
	}
	return b.containsLng(p.Lng)
}

func (b Bounds) containsLng(lng float64) bool {
	if b.CrossesAntimeridian() {
		return lng >= b.Southwest.Lng || lng <= b.Northeast.Lng
	}
	return lng >= b.Southwest.Lng && lng <= b.Northeast.Lng
}

// Extend returns the smallest box containing b and p. A longitude outside the
// box moves whichever edge needs the shorter eastward or westward stretch, so
// the result may cross the antimeridian.
func (b Bounds) Extend(p LatLng) Bounds {
	out := b
	out.Southwest.Lat = min(b.Southwest.Lat, p.Lat)
	out.Northeast.Lat = max(b.Northeast.Lat, p.Lat)
	if b.containsLng(p.Lng) {
		return out
	}
	west := eastward(p.Lng, b.Southwest.Lng)
	east := eastward(b.Northeast.Lng, p.Lng)
	if west < east {
		out.Southwest.Lng = p.Lng
	} else {
		out.Northeast.Lng = p.Lng
	}
	return out
}

// eastward is the distance in degrees travelling east from a to b.
func eastward(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func normalizeLng(lng float64) float64 {
	lng = math.Mod(lng+180, 360)
	if lng <= 0 {
		lng += 360
	}
	return lng - 180
}

// Wire is the output shape of bounds, with the derived center.
type Wire struct {
	Southwest LatLng `json:"southwest"`
	Center    LatLng `json:"center"`
	Northeast LatLng `json:"northeast"`
}

// Wire returns the output representation.
func (b Bounds) Wire() Wire {
	return Wire{Southwest: b.Southwest, Center: b.Center(), Northeast: b.Northeast}
}

// Centroid returns the arithmetic mean of the given points.
func Centroid(points []LatLng) LatLng {
	if len(points) == 0 {
		return LatLng{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return LatLng{Lat: sumLat / n, Lng: sumLng / n}
}
