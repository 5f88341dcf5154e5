package memory

import (
	"cmp"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
)

// Kind is the type of an attached object.
type Kind string

const (
	KindMarker   Kind = "marker"
	KindPolygon  Kind = "polygon"
	KindCircle   Kind = "circle"
	KindPolyline Kind = "polyline"
	KindTile     Kind = "tile"
	KindGround   Kind = "ground"
	KindCluster  Kind = "cluster"
)

// Object is a snapshot of an attached object.
type Object struct {
	ID         string
	Kind       Kind
	Descriptor any
	Position   geo.LatLng
	Size       int
	Bounds     geo.Bounds
	Image      *imagecache.Image
	Opacity    float64
	Visible    bool

	seq uint64
}

// Surface is an in-memory map surface.
type Surface struct {
	mapID string
	cfg   provider.Config
	sink  provider.Sink

	mu          sync.Mutex
	opts        Options
	seq         uint64
	objects     map[string]*Object
	handles     map[string]*handle
	camera      provider.Camera
	mapType     provider.MapType
	padding     provider.Padding
	styles      []any
	indoor      bool
	traffic     bool
	myLocation  bool
	a11y        bool
	touch       bool
	ready       bool
	released    bool
}

func newSurface(mapID string, opts Options, cfg provider.Config, sink provider.Sink) *Surface {
	mapType := cfg.MapType
	if mapType == "" {
		mapType = provider.MapTypeNormal
	}
	return &Surface{
		mapID:   mapID,
		cfg:     cfg,
		sink:    sink,
		opts:    opts,
		objects: make(map[string]*Object),
		handles: make(map[string]*handle),
		camera:  cfg.Camera(),
		mapType: mapType,
		padding: cfg.Padding,
		styles:  cfg.Styles,
		indoor:  true,
		touch:   true,
	}
}

// MapID returns the map the surface was created for.
func (s *Surface) MapID() string {
	return s.mapID
}

// Ready marks the surface initialized and emits the ready event once.
func (s *Surface) Ready() {
	s.mu.Lock()
	if s.ready || s.released {
		s.mu.Unlock()
		return
	}
	s.ready = true
	s.mu.Unlock()

	s.emit(provider.RawEvent{Kind: events.MapReady})
}

func (s *Surface) emit(ev provider.RawEvent) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()

	if released || s.sink == nil {
		return
	}
	s.sink(ev)
}

func (s *Surface) attach(o *Object) (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, provider.ErrReleased
	}
	s.seq++
	o.ID = uuid.NewString()
	o.seq = s.seq
	s.objects[o.ID] = o
	h := &handle{id: o.ID, s: s}
	s.handles[o.ID] = h
	return h, nil
}

// AddMarker implements provider.Surface.
func (s *Surface) AddMarker(m overlay.Marker, icon *imagecache.Image) (provider.Handle, error) {
	h, err := s.attach(&Object{Kind: KindMarker, Descriptor: m, Position: m.Coordinate, Image: icon, Opacity: m.Opacity, Visible: true})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddPolygon implements provider.Surface.
func (s *Surface) AddPolygon(p overlay.Polygon) (provider.Handle, error) {
	h, err := s.attach(&Object{Kind: KindPolygon, Descriptor: p, Position: geo.Centroid(p.Paths[0]), Opacity: p.FillOpacity, Visible: true})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddCircle implements provider.Surface.
func (s *Surface) AddCircle(c overlay.Circle) (provider.Handle, error) {
	h, err := s.attach(&Object{Kind: KindCircle, Descriptor: c, Position: c.Center, Opacity: 1, Visible: true})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddPolyline implements provider.Surface.
func (s *Surface) AddPolyline(p overlay.Polyline) (provider.Handle, error) {
	h, err := s.attach(&Object{Kind: KindPolyline, Descriptor: p, Position: p.Path[0], Opacity: 1, Visible: true})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddTileLayer implements provider.Surface.
func (s *Surface) AddTileLayer(t overlay.TileLayer) (provider.TileHandle, error) {
	h, err := s.attach(&Object{Kind: KindTile, Descriptor: t, Opacity: t.Opacity, Visible: t.Visible})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddGroundOverlay implements provider.Surface.
func (s *Surface) AddGroundOverlay(g overlay.GroundOverlay, img *imagecache.Image) (provider.GroundHandle, error) {
	h, err := s.attach(&Object{Kind: KindGround, Descriptor: g, Bounds: g.Bounds, Image: img, Opacity: g.Opacity, Visible: true})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddClusterView implements provider.Surface.
func (s *Surface) AddClusterView(v provider.ClusterView) (provider.Handle, error) {
	o := &Object{Kind: KindCluster, Position: v.Position, Size: v.Size, Opacity: 1, Visible: true}
	if v.Marker != nil {
		o.Descriptor = *v.Marker
	}
	h, err := s.attach(o)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SetOptions implements provider.Surface.
func (s *Surface) SetOptions(o provider.Options) error {
	s.mu.Lock()
	if o.Zoom != nil {
		s.camera.Zoom = *o.Zoom
	}
	if o.Center != nil {
		s.camera.Target = *o.Center
	}
	if o.Styles != nil {
		s.styles = o.Styles
	}
	s.mu.Unlock()
	return nil
}

// MoveCamera implements provider.Surface. Programmatic moves report the same
// event sequence as a settled gesture.
func (s *Surface) MoveCamera(c provider.Camera, animate bool) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return provider.ErrReleased
	}
	s.camera = c
	s.mu.Unlock()

	s.emit(provider.RawEvent{Kind: events.CameraMoveStarted, Camera: c})
	s.emit(provider.RawEvent{Kind: provider.CameraMove, Camera: c})
	s.Idle()
	return nil
}

// Camera implements provider.Surface.
func (s *Surface) Camera() provider.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.camera
}

// VisibleBounds implements provider.Surface.
func (s *Surface) VisibleBounds() (geo.Bounds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return geo.Bounds{}, provider.ErrReleased
	}
	return provider.VisibleSpan(s.camera, s.cfg.Width, s.cfg.Height), nil
}

// FitBounds implements provider.Surface.
func (s *Surface) FitBounds(b geo.Bounds, padding int) error {
	c := s.Camera()
	c.Target = b.Center()
	c.Zoom = provider.ZoomForBounds(b, s.cfg.Width, s.cfg.Height, padding)
	return s.MoveCamera(c, true)
}

// SetMapType implements provider.Surface.
func (s *Surface) SetMapType(t provider.MapType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mapType = t
	return nil
}

// MapType implements provider.Surface.
func (s *Surface) MapType() provider.MapType {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mapType
}

// SetIndoorEnabled implements provider.Surface. Indoor maps do not exist on
// the web.
func (s *Surface) SetIndoorEnabled(enabled bool) error {
	if s.opts.Platform == provider.PlatformWeb {
		return errs.Unsupported("enableIndoorMaps", string(s.opts.Platform))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indoor = enabled
	return nil
}

// SetTrafficEnabled implements provider.Surface.
func (s *Surface) SetTrafficEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traffic = enabled
	return nil
}

// SetMyLocationEnabled implements provider.Surface.
func (s *Surface) SetMyLocationEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled && !s.opts.LocationGranted {
		return errs.PermissionDenied("current location")
	}
	s.myLocation = enabled
	return nil
}

// SetAccessibilityElements implements provider.Surface. Only the iOS SDK
// exposes accessibility elements.
func (s *Surface) SetAccessibilityElements(enabled bool) error {
	if s.opts.Platform != provider.PlatformIOS {
		return errs.Unsupported("enableAccessibilityElements", string(s.opts.Platform))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.a11y = enabled
	return nil
}

// SetPadding implements provider.Surface.
func (s *Surface) SetPadding(p provider.Padding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.padding = p
	return nil
}

// SetTouchEnabled implements provider.Surface.
func (s *Surface) SetTouchEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch = enabled
	return nil
}

// Release implements provider.Surface.
func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	clear(s.objects)
	clear(s.handles)
}

// Released reports whether Release was called.
func (s *Surface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.released
}

// Objects returns the attached objects of a kind in attach order.
func (s *Surface) Objects(kind Kind) []Object {
	s.mu.Lock()
	out := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		if o.Kind == kind {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Object) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Count returns the number of attached objects of a kind.
func (s *Surface) Count(kind Kind) int {
	return len(s.Objects(kind))
}

// Object returns the attached object with the given handle id.
func (s *Surface) Object(id string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return Object{}, false
	}
	return *o, true
}

// State is a snapshot of the map level settings.
type State struct {
	MapType    provider.MapType
	Padding    provider.Padding
	Styles     []any
	Indoor     bool
	Traffic    bool
	MyLocation bool
	A11y       bool
	Touch      bool
}

// State returns the map level settings.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		MapType:    s.mapType,
		Padding:    s.padding,
		Styles:     s.styles,
		Indoor:     s.indoor,
		Traffic:    s.traffic,
		MyLocation: s.myLocation,
		A11y:       s.a11y,
		Touch:      s.touch,
	}
}
