package maps

import (
	"log/slog"

	"github.com/ekisa-team/mapbridge/internal/cluster"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/provider"
)

// onRawEvent is the surface sink. Translation needs the registries, so it is
// deferred to the loop.
func (i *Instance) onRawEvent(ev provider.RawEvent) {
	if err := i.loop.Post(func() { i.handleRaw(ev) }); err != nil {
		slog.Debug("Dropped event from stopped map", "map_id", i.id, "kind", ev.Kind)
	}
}

func (i *Instance) handleRaw(ev provider.RawEvent) {
	if !i.alive.Load() {
		return
	}

	switch ev.Kind {
	case events.MapReady:
		if i.ready {
			return
		}
		i.ready = true
		slog.Debug("Map ready", "map_id", i.id)
		i.publish(ev.Kind, nil)

	case provider.CameraMove:
		if i.cluster != nil {
			i.cluster.CameraMoved()
		}

	case events.CameraMoveStarted:
		i.publish(ev.Kind, map[string]any{"isGesture": ev.Gesture})

	case events.CameraIdle, events.BoundsChanged:
		i.publish(ev.Kind, cameraData(ev))

	case events.MapClick, events.MyLocationClick:
		i.publish(ev.Kind, events.Position(ev.Position))

	case events.MyLocationButtonClick:
		i.publish(ev.Kind, nil)

	case events.MarkerClick, events.InfoWindowClick,
		events.MarkerDragStart, events.MarkerDrag, events.MarkerDragEnd:
		id, ok := i.markerID(ev.Handle)
		if !ok {
			return
		}
		i.publish(ev.Kind, i.markerData(id, ev.Position))

	case events.ClusterClick, events.ClusterInfoWindowClick:
		i.handleClusterEvent(ev)

	case events.PolygonClick:
		id, ok := i.polygons.Lookup(ev.Handle)
		if !ok {
			return
		}
		e, _ := i.polygons.Get(id)
		i.publish(ev.Kind, map[string]any{"polygonId": id, "tag": e.Descriptor.Tag})

	case events.CircleClick:
		id, ok := i.circles.Lookup(ev.Handle)
		if !ok {
			return
		}
		e, _ := i.circles.Get(id)
		d := events.Position(e.Descriptor.Center)
		d["circleId"] = id
		d["tag"] = e.Descriptor.Tag
		d["radius"] = e.Descriptor.Radius
		i.publish(ev.Kind, d)

	case events.PolylineClick:
		id, ok := i.polylines.Lookup(ev.Handle)
		if !ok {
			return
		}
		e, _ := i.polylines.Get(id)
		i.publish(ev.Kind, map[string]any{"polylineId": id, "tag": e.Descriptor.Tag})

	default:
		slog.Debug("Ignoring unknown raw event", "map_id", i.id, "kind", ev.Kind)
	}
}

// markerID resolves a marker handle, including the single-marker views drawn
// while clustering.
func (i *Instance) markerID(h provider.Handle) (string, bool) {
	if h == nil {
		return "", false
	}
	if id, ok := i.markers.Lookup(h); ok {
		return id, true
	}
	if i.cluster != nil {
		if v, ok := i.cluster.View(h); ok && v.MarkerID != "" {
			return v.MarkerID, true
		}
	}
	return "", false
}

// markerData is the payload of marker events: where it happened plus the
// marker's id, title and snippet.
func (i *Instance) markerData(id string, pos geo.LatLng) map[string]any {
	data := events.Position(pos)
	data["markerId"] = id
	data["title"] = ""
	data["snippet"] = ""
	if e, ok := i.markers.Get(id); ok {
		data["title"] = e.Descriptor.Title
		data["snippet"] = e.Descriptor.Snippet
	}
	return data
}

func (i *Instance) handleClusterEvent(ev provider.RawEvent) {
	if i.cluster == nil || ev.Handle == nil {
		return
	}
	v, ok := i.cluster.View(ev.Handle)
	if !ok {
		return
	}

	// A group below the minimum size is drawn as plain markers.
	if v.MarkerID != "" {
		kind := events.MarkerClick
		if ev.Kind == events.ClusterInfoWindowClick {
			kind = events.InfoWindowClick
		}
		i.publish(kind, i.markerData(v.MarkerID, v.Cluster.Position))
		return
	}

	i.publish(ev.Kind, clusterData(v.Cluster))
}

func clusterData(c cluster.Cluster) map[string]any {
	items := make([]any, len(c.Members))
	for idx, m := range c.Members {
		items[idx] = map[string]any{
			"markerId":  m.MarkerID,
			"latitude":  m.Position.Lat,
			"longitude": m.Position.Lng,
			"title":     m.Title,
			"snippet":   m.Snippet,
		}
	}
	d := events.Position(c.Position)
	d["size"] = c.Size
	d["items"] = items
	return d
}

func cameraData(ev provider.RawEvent) map[string]any {
	return map[string]any{
		"bounds":    events.BoundsData(ev.Bounds),
		"bearing":   ev.Camera.Bearing,
		"latitude":  ev.Camera.Target.Lat,
		"longitude": ev.Camera.Target.Lng,
		"tilt":      ev.Camera.Tilt,
		"zoom":      ev.Camera.Zoom,
	}
}

func (i *Instance) publish(kind events.Kind, data map[string]any) {
	if i.bus == nil {
		return
	}
	i.bus.Publish(events.New(kind, i.id, data))
}
