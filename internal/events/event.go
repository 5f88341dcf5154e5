// Package events defines the tagged map events and the bus that carries them
// from map instances to listeners.
package events

import (
	"time"

	"github.com/ekisa-team/mapbridge/internal/geo"
)

// Kind names an event variant.
type Kind string

const (
	MapReady               Kind = "onMapReady"
	CameraIdle             Kind = "onCameraIdle"
	CameraMoveStarted      Kind = "onCameraMoveStarted"
	BoundsChanged          Kind = "onBoundsChanged"
	MapClick               Kind = "onMapClick"
	MarkerClick            Kind = "onMarkerClick"
	MarkerDragStart        Kind = "onMarkerDragStart"
	MarkerDrag             Kind = "onMarkerDrag"
	MarkerDragEnd          Kind = "onMarkerDragEnd"
	InfoWindowClick        Kind = "onInfoWindowClick"
	PolygonClick           Kind = "onPolygonClick"
	CircleClick            Kind = "onCircleClick"
	PolylineClick          Kind = "onPolylineClick"
	MyLocationButtonClick  Kind = "onMyLocationButtonClick"
	MyLocationClick        Kind = "onMyLocationClick"
	ClusterClick           Kind = "onClusterClick"
	ClusterInfoWindowClick Kind = "onClusterInfoWindowClick"
)

// Kinds lists every event variant.
var Kinds = []Kind{
	MapReady, CameraIdle, CameraMoveStarted, BoundsChanged, MapClick,
	MarkerClick, MarkerDragStart, MarkerDrag, MarkerDragEnd, InfoWindowClick,
	PolygonClick, CircleClick, PolylineClick, MyLocationButtonClick,
	MyLocationClick, ClusterClick, ClusterInfoWindowClick,
}

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one provider-originated notification. Data uses the wire keys of
// the bridge payloads and only holds JSON compatible values.
type Event struct {
	Kind  Kind           `json:"kind"`
	MapID string         `json:"mapId"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// New creates an event stamped with the current time.
func New(kind Kind, mapID string, data map[string]any) Event {
	if data == nil {
		data = make(map[string]any)
	}
	data["mapId"] = mapID
	return Event{Kind: kind, MapID: mapID, Time: time.Now(), Data: data}
}

// Position returns the latitude/longitude payload pair.
func Position(p geo.LatLng) map[string]any {
	return map[string]any{"latitude": p.Lat, "longitude": p.Lng}
}

// BoundsData returns the wire form of bounds, center included.
func BoundsData(b geo.Bounds) map[string]any {
	w := b.Wire()
	return map[string]any{
		"southwest": map[string]any{"lat": w.Southwest.Lat, "lng": w.Southwest.Lng},
		"center":    map[string]any{"lat": w.Center.Lat, "lng": w.Center.Lng},
		"northeast": map[string]any{"lat": w.Northeast.Lat, "lng": w.Northeast.Lng},
	}
}
