package overlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/ekisa-team/mapbridge/internal/geo"
)

// Descriptor is the caller-supplied, immutable value form of an overlay.
type Descriptor interface {
	Validate() error
}

// Size is a width/height pair in device independent pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Offset is an x/y pair, used for icon anchors and origins.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Color is an RGBA tint, channels 0..255 and alpha 0..1.
type Color struct {
	R int     `json:"r"`
	G int     `json:"g"`
	B int     `json:"b"`
	A float64 `json:"a"`
}

// Marker describes a point marker.
type Marker struct {
	Coordinate geo.LatLng `json:"coordinate"`
	Title      string     `json:"title,omitempty"`
	Snippet    string     `json:"snippet,omitempty"`
	Opacity    float64    `json:"opacity"`
	IsFlat     bool       `json:"isFlat,omitempty"`
	Draggable  bool       `json:"draggable,omitempty"`
	ZIndex     float64    `json:"zIndex,omitempty"`
	IconURL    string     `json:"iconUrl,omitempty"`
	IconSize   *Size      `json:"iconSize,omitempty"`
	IconAnchor *Offset    `json:"iconAnchor,omitempty"`
	IconOrigin *Offset    `json:"iconOrigin,omitempty"`
	TintColor  *Color     `json:"tintColor,omitempty"`
	ColorHue   *float64   `json:"colorHue,omitempty"`
}

// Validate checks the marker fields.
func (m Marker) Validate() error {
	if err := m.Coordinate.Validate(); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	if err := validateOpacity(m.Opacity); err != nil {
		return err
	}
	if m.IconSize != nil && (m.IconSize.Width <= 0 || m.IconSize.Height <= 0) {
		return fmt.Errorf("iconSize must be positive, got %vx%v", m.IconSize.Width, m.IconSize.Height)
	}
	if m.ColorHue != nil && (*m.ColorHue < 0 || *m.ColorHue >= 360) {
		return fmt.Errorf("colorHue %v out of range [0, 360)", *m.ColorHue)
	}
	return nil
}

// Polygon describes a filled shape; the first path is the outer ring and the
// rest are holes.
type Polygon struct {
	Paths         [][]geo.LatLng `json:"paths"`
	StrokeColor   string         `json:"strokeColor,omitempty"`
	StrokeOpacity float64        `json:"strokeOpacity"`
	StrokeWeight  float64        `json:"strokeWeight"`
	FillColor     string         `json:"fillColor,omitempty"`
	FillOpacity   float64        `json:"fillOpacity"`
	Geodesic      bool           `json:"geodesic,omitempty"`
	Clickable     bool           `json:"clickable,omitempty"`
	ZIndex        float64        `json:"zIndex,omitempty"`
	Tag           string         `json:"tag,omitempty"`
}

// Validate checks the polygon fields.
func (p Polygon) Validate() error {
	if len(p.Paths) == 0 {
		return fmt.Errorf("paths must contain at least one ring")
	}
	if len(p.Paths[0]) < 3 {
		return fmt.Errorf("outer ring needs at least 3 points, got %d", len(p.Paths[0]))
	}
	for i, ring := range p.Paths {
		for j, pt := range ring {
			if err := pt.Validate(); err != nil {
				return fmt.Errorf("paths[%d][%d]: %w", i, j, err)
			}
		}
	}
	if err := validateOpacity(p.StrokeOpacity); err != nil {
		return fmt.Errorf("stroke: %w", err)
	}
	if err := validateOpacity(p.FillOpacity); err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	if p.StrokeWeight < 0 {
		return fmt.Errorf("strokeWeight must not be negative")
	}
	return nil
}

// Circle describes a circle of a given radius in meters.
type Circle struct {
	Center       geo.LatLng `json:"center"`
	Radius       float64    `json:"radius"`
	StrokeColor  string     `json:"strokeColor,omitempty"`
	StrokeWeight float64    `json:"strokeWeight"`
	FillColor    string     `json:"fillColor,omitempty"`
	Clickable    bool       `json:"clickable,omitempty"`
	ZIndex       float64    `json:"zIndex,omitempty"`
	Tag          string     `json:"tag,omitempty"`
}

// Validate checks the circle fields.
func (c Circle) Validate() error {
	if err := c.Center.Validate(); err != nil {
		return fmt.Errorf("center: %w", err)
	}
	if c.Radius <= 0 {
		return fmt.Errorf("radius must be positive, got %v", c.Radius)
	}
	if c.StrokeWeight < 0 {
		return fmt.Errorf("strokeWeight must not be negative")
	}
	return nil
}

// StyleSpan colors a number of consecutive polyline segments.
type StyleSpan struct {
	Color    string  `json:"color"`
	Segments float64 `json:"segments"`
}

// Polyline describes an open path.
type Polyline struct {
	Path        []geo.LatLng `json:"path"`
	StrokeColor string       `json:"strokeColor,omitempty"`
	StrokeWidth float64      `json:"strokeWidth"`
	Geodesic    bool         `json:"geodesic,omitempty"`
	Clickable   bool         `json:"clickable,omitempty"`
	ZIndex      float64      `json:"zIndex,omitempty"`
	Tag         string       `json:"tag,omitempty"`
	StyleSpans  []StyleSpan  `json:"styleSpans,omitempty"`
}

// Validate checks the polyline fields.
func (p Polyline) Validate() error {
	if len(p.Path) < 2 {
		return fmt.Errorf("path needs at least 2 points, got %d", len(p.Path))
	}
	for i, pt := range p.Path {
		if err := pt.Validate(); err != nil {
			return fmt.Errorf("path[%d]: %w", i, err)
		}
	}
	if p.StrokeWidth < 0 {
		return fmt.Errorf("strokeWidth must not be negative")
	}
	return nil
}

// DefaultTileMaxZoom is used when a tile layer does not set maxZoom.
const DefaultTileMaxZoom = 20

// TileLayer describes a URL-templated raster tile layer.
type TileLayer struct {
	TileURL string  `json:"tileUrl"`
	Opacity float64 `json:"opacity"`
	MaxZoom int     `json:"maxZoom"`
	ZIndex  float64 `json:"zIndex,omitempty"`
	Visible bool    `json:"visible"`
}

// Validate checks the tile layer fields.
func (t TileLayer) Validate() error {
	if strings.TrimSpace(t.TileURL) == "" {
		return fmt.Errorf("tileUrl is required")
	}
	if t.MaxZoom < 0 {
		return fmt.Errorf("maxZoom must not be negative")
	}
	return validateOpacity(t.Opacity)
}

// URL substitutes the tile coordinates into the template. Tiles above MaxZoom
// have no URL.
func (t TileLayer) URL(tile maptile.Tile) string {
	if int(tile.Z) > t.MaxZoom {
		return ""
	}
	return strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
		"{zoom}", strconv.Itoa(int(tile.Z)),
	).Replace(t.TileURL)
}

// GroundOverlay describes an image stretched over geographic bounds.
type GroundOverlay struct {
	ImageURL string     `json:"imageUrl"`
	Bounds   geo.Bounds `json:"bounds"`
	Opacity  float64    `json:"opacity"`
}

// Validate checks the ground overlay fields.
func (g GroundOverlay) Validate() error {
	if strings.TrimSpace(g.ImageURL) == "" {
		return fmt.Errorf("imageUrl is required")
	}
	if err := g.Bounds.Validate(); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	return validateOpacity(g.Opacity)
}

// MultipleGroundOverlays is the indexed ground overlay payload: entry i is
// ImageURLs[i] stretched over Bounds[i].
type MultipleGroundOverlays struct {
	ImageURLs []string     `json:"imageUrl"`
	Bounds    []geo.Bounds `json:"bounds"`
	Opacity   float64      `json:"opacity"`
}

// Validate checks the arrays line up and every entry is valid.
func (m MultipleGroundOverlays) Validate() error {
	if len(m.ImageURLs) != len(m.Bounds) {
		return fmt.Errorf("mismatched imageUrl and bounds count: %d != %d", len(m.ImageURLs), len(m.Bounds))
	}
	for i := range m.ImageURLs {
		if err := m.At(i).Validate(); err != nil {
			return fmt.Errorf("overlay %d: %w", i, err)
		}
	}
	return nil
}

// At returns entry i as a single ground overlay.
func (m MultipleGroundOverlays) At(i int) GroundOverlay {
	return GroundOverlay{ImageURL: m.ImageURLs[i], Bounds: m.Bounds[i], Opacity: m.Opacity}
}

func validateOpacity(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("opacity %v out of range [0, 1]", v)
	}
	return nil
}
