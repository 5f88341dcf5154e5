package memory

import (
	"fmt"

	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/provider"
)

func (s *Surface) lookup(objectID string) (*handle, Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[objectID]
	if !ok {
		return nil, Object{}, fmt.Errorf("object %s is not attached", objectID)
	}
	return s.handles[objectID], *o, nil
}

// Tap simulates a tap on an attached object.
func (s *Surface) Tap(objectID string) error {
	h, o, err := s.lookup(objectID)
	if err != nil {
		return err
	}

	var kind events.Kind
	switch o.Kind {
	case KindMarker:
		kind = events.MarkerClick
	case KindPolygon:
		kind = events.PolygonClick
	case KindCircle:
		kind = events.CircleClick
	case KindPolyline:
		kind = events.PolylineClick
	case KindCluster:
		kind = events.ClusterClick
	default:
		return fmt.Errorf("%s objects are not tappable", o.Kind)
	}
	s.emit(provider.RawEvent{Kind: kind, Handle: h, Position: o.Position})
	return nil
}

// TapInfoWindow simulates a tap on the info window of a marker or cluster.
func (s *Surface) TapInfoWindow(objectID string) error {
	h, o, err := s.lookup(objectID)
	if err != nil {
		return err
	}

	switch o.Kind {
	case KindMarker:
		s.emit(provider.RawEvent{Kind: events.InfoWindowClick, Handle: h, Position: o.Position})
	case KindCluster:
		s.emit(provider.RawEvent{Kind: events.ClusterInfoWindowClick, Handle: h, Position: o.Position})
	default:
		return fmt.Errorf("%s objects have no info window", o.Kind)
	}
	return nil
}

// Drag simulates a full drag of a marker to p.
func (s *Surface) Drag(objectID string, p geo.LatLng) error {
	h, o, err := s.lookup(objectID)
	if err != nil {
		return err
	}
	if o.Kind != KindMarker {
		return fmt.Errorf("%s objects are not draggable", o.Kind)
	}

	s.emit(provider.RawEvent{Kind: events.MarkerDragStart, Handle: h, Position: o.Position})
	h.update(func(o *Object) { o.Position = p })
	s.emit(provider.RawEvent{Kind: events.MarkerDrag, Handle: h, Position: p})
	s.emit(provider.RawEvent{Kind: events.MarkerDragEnd, Handle: h, Position: p})
	return nil
}

// TapMap simulates a tap on the map itself.
func (s *Surface) TapMap(p geo.LatLng) {
	s.emit(provider.RawEvent{Kind: events.MapClick, Position: p})
}

// TapMyLocationButton simulates a tap on the my-location button.
func (s *Surface) TapMyLocationButton() {
	s.emit(provider.RawEvent{Kind: events.MyLocationButtonClick})
}

// TapMyLocation simulates a tap on the my-location dot.
func (s *Surface) TapMyLocation(p geo.LatLng) {
	s.emit(provider.RawEvent{Kind: events.MyLocationClick, Position: p})
}

// Pan simulates one frame of a camera gesture. Call Idle when the gesture
// settles.
func (s *Surface) Pan(c provider.Camera, first bool) {
	s.mu.Lock()
	s.camera = c
	s.mu.Unlock()

	if first {
		s.emit(provider.RawEvent{Kind: events.CameraMoveStarted, Camera: c, Gesture: true})
	}
	s.emit(provider.RawEvent{Kind: provider.CameraMove, Camera: c})
}

// Idle reports the camera as settled.
func (s *Surface) Idle() {
	c := s.Camera()
	b, err := s.VisibleBounds()
	if err != nil {
		return
	}
	s.emit(provider.RawEvent{Kind: events.CameraIdle, Camera: c, Bounds: b})
	s.emit(provider.RawEvent{Kind: events.BoundsChanged, Camera: c, Bounds: b})
}
