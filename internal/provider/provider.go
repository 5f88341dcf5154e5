// Package provider is the boundary to the vendor map SDKs. A Provider creates
// one Surface per map; the surface attaches overlays and reports user
// interaction as RawEvents.
package provider

import (
	"context"
	"fmt"
	"math"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/overlay"
)

// Platform is the host environment a provider renders into.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformWeb:
		return true
	}
	return false
}

// MapType is the base map rendering.
type MapType string

const (
	MapTypeNormal    MapType = "Normal"
	MapTypeHybrid    MapType = "Hybrid"
	MapTypeSatellite MapType = "Satellite"
	MapTypeTerrain   MapType = "Terrain"
	MapTypeNone      MapType = "None"
)

// ParseMapType maps a wire name to a MapType. Unknown names fall back to
// Normal and report false.
func ParseMapType(s string) (MapType, bool) {
	switch t := MapType(s); t {
	case MapTypeNormal, MapTypeHybrid, MapTypeSatellite, MapTypeTerrain, MapTypeNone:
		return t, true
	}
	return MapTypeNormal, false
}

// Padding insets the map controls and camera target, in pixels.
type Padding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Camera is the view position of a map.
type Camera struct {
	Target  geo.LatLng `json:"target"`
	Zoom    float64    `json:"zoom"`
	Bearing float64    `json:"bearing"`
	Tilt    float64    `json:"tilt"`
}

// CameraUpdate changes some camera fields; nil fields keep their value.
type CameraUpdate struct {
	Coordinate *geo.LatLng
	Zoom       *float64
	Bearing    *float64
	Angle      *float64
	Animate    bool
}

// Apply returns c with the update applied.
func (u CameraUpdate) Apply(c Camera) Camera {
	if u.Coordinate != nil {
		c.Target = *u.Coordinate
	}
	if u.Zoom != nil {
		c.Zoom = *u.Zoom
	}
	if u.Bearing != nil {
		c.Bearing = *u.Bearing
	}
	if u.Angle != nil {
		c.Tilt = *u.Angle
	}
	return c
}

// Config is the creation snapshot of a map.
type Config struct {
	Width            float64    `json:"width"`
	Height           float64    `json:"height"`
	X                float64    `json:"x"`
	Y                float64    `json:"y"`
	Center           geo.LatLng `json:"center"`
	Zoom             float64    `json:"zoom"`
	Bearing          float64    `json:"bearing"`
	Tilt             float64    `json:"tilt"`
	StyleID          string     `json:"mapId,omitempty"`
	Styles           []any      `json:"styles,omitempty"`
	DevicePixelRatio float64    `json:"devicePixelRatio"`
	MapType          MapType    `json:"mapType"`
	Padding          Padding    `json:"padding"`
}

// Validate checks the fields a surface cannot be created without.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errs.InvalidConfiguration("map dimensions must be positive, got %vx%v", c.Width, c.Height)
	}
	if err := c.Center.Validate(); err != nil {
		return errs.InvalidConfiguration("invalid center: %v", err)
	}
	if c.Zoom < 0 {
		return errs.InvalidConfiguration("zoom must not be negative")
	}
	return nil
}

// Camera returns the initial camera of the map.
func (c Config) Camera() Camera {
	return Camera{Target: c.Center, Zoom: c.Zoom, Bearing: c.Bearing, Tilt: c.Tilt}
}

// Options are the mutable map options of updateMapOptions.
type Options struct {
	Zoom   *float64
	Center *geo.LatLng
	Styles []any
}

// Handle is an attached provider object.
type Handle interface {
	ID() string
	Remove()
}

// TileHandle is an attached tile layer.
type TileHandle interface {
	Handle
	SetOpacity(opacity float64)
}

// GroundHandle is an attached ground overlay.
type GroundHandle interface {
	Handle
	SetBounds(b geo.Bounds)
	SetImage(img *imagecache.Image)
	SetOpacity(opacity float64)
	SetVisible(visible bool)
}

// ClusterView is the rendering of one cluster. A view of size one stands for
// a single marker of a group below the minimum cluster size.
type ClusterView struct {
	Position geo.LatLng
	Size     int
	Marker   *overlay.Marker
}

// Surface is one live, provider-rendered map. All methods are called from the
// map's ui loop.
type Surface interface {
	AddMarker(m overlay.Marker, icon *imagecache.Image) (Handle, error)
	AddPolygon(p overlay.Polygon) (Handle, error)
	AddCircle(c overlay.Circle) (Handle, error)
	AddPolyline(p overlay.Polyline) (Handle, error)
	AddTileLayer(t overlay.TileLayer) (TileHandle, error)
	AddGroundOverlay(g overlay.GroundOverlay, img *imagecache.Image) (GroundHandle, error)
	AddClusterView(v ClusterView) (Handle, error)

	SetOptions(o Options) error
	MoveCamera(c Camera, animate bool) error
	Camera() Camera
	VisibleBounds() (geo.Bounds, error)
	FitBounds(b geo.Bounds, padding int) error
	SetMapType(t MapType) error
	MapType() MapType
	SetIndoorEnabled(enabled bool) error
	SetTrafficEnabled(enabled bool) error
	SetMyLocationEnabled(enabled bool) error
	SetAccessibilityElements(enabled bool) error
	SetPadding(p Padding) error
	SetTouchEnabled(enabled bool) error

	// Release detaches everything and frees the native view. No event is
	// delivered to the sink after Release returns.
	Release()
}

// CameraMove is delivered for every intermediate camera frame. It is not a
// public event; it drives re-clustering.
const CameraMove events.Kind = "cameraMove"

// RawEvent is a native callback translated into a tagged variant. Handle is
// set for overlay events and nil for map level events.
type RawEvent struct {
	Kind     events.Kind
	Handle   Handle
	Position geo.LatLng
	Camera   Camera
	Bounds   geo.Bounds
	Gesture  bool
}

// Sink receives the raw events of one surface.
type Sink func(RawEvent)

// Provider creates surfaces for one platform.
type Provider interface {
	Platform() Platform
	NewSurface(ctx context.Context, mapID string, cfg Config, sink Sink) (Surface, error)
}

// VisibleSpan approximates the bounds shown by a viewport of the given pixel
// size around the camera target, using the web mercator ground resolution.
func VisibleSpan(c Camera, width, height float64) geo.Bounds {
	degPerPx := 360 / (256 * math.Pow(2, c.Zoom))
	halfLng := math.Min(width*degPerPx/2, 180)
	halfLat := math.Min(height*degPerPx/2, 90)

	sw := geo.LatLng{Lat: clamp(c.Target.Lat-halfLat, -85, 85), Lng: clamp(c.Target.Lng-halfLng, -180, 180)}
	ne := geo.LatLng{Lat: clamp(c.Target.Lat+halfLat, -85, 85), Lng: clamp(c.Target.Lng+halfLng, -180, 180)}
	return geo.NewBounds(sw, ne)
}

// ZoomForBounds returns the largest integer zoom at which b fits in a
// viewport of the given pixel size, after padding.
func ZoomForBounds(b geo.Bounds, width, height float64, padding int) float64 {
	w := width - 2*float64(padding)
	h := height - 2*float64(padding)
	if w <= 0 || h <= 0 {
		return 0
	}
	spanLng := b.Northeast.Lng - b.Southwest.Lng
	spanLat := b.Northeast.Lat - b.Southwest.Lat
	for z := 21; z > 0; z-- {
		degPerPx := 360 / (256 * math.Pow(2, float64(z)))
		if spanLng <= w*degPerPx && spanLat <= h*degPerPx {
			return float64(z)
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// String implements fmt.Stringer.
func (c Camera) String() string {
	return fmt.Sprintf("%v,%v z%v", c.Target.Lat, c.Target.Lng, c.Zoom)
}
