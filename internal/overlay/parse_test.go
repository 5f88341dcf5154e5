package overlay

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/mapbridge/internal/errs"
)

func latLng(lat, lng float64) map[string]any {
	return map[string]any{"lat": lat, "lng": lng}
}

func TestParseMarker(t *testing.T) {
	m, err := ParseMarker(map[string]any{
		"coordinate": latLng(10, 20),
		"title":      "Pier",
		"snippet":    "North side",
		"iconUrl":    "https://example.com/pin.png",
		"iconSize":   map[string]any{"width": 24.0, "height": 32.0},
		"draggable":  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.Coordinate.Lat)
	assert.Equal(t, "Pier", m.Title)
	assert.Equal(t, 1.0, m.Opacity)
	assert.True(t, m.Draggable)
	require.NotNil(t, m.IconSize)
	assert.Equal(t, 32.0, m.IconSize.Height)

	_, err = ParseMarker(map[string]any{"title": "no coordinate"})
	assert.True(t, errs.IsInvalidArguments(err))

	_, err = ParseMarker(map[string]any{"coordinate": latLng(10, 20), "opacity": 2.0})
	assert.True(t, errs.IsInvalidArguments(err))
}

func TestParsePolygon_RingShapes(t *testing.T) {
	ring := []any{latLng(0, 0), latLng(0, 1), latLng(1, 1)}

	single, err := ParsePolygon(map[string]any{"paths": ring})
	require.NoError(t, err)
	assert.Len(t, single.Paths, 1)

	nested, err := ParsePolygon(map[string]any{"paths": []any{ring, ring}})
	require.NoError(t, err)
	assert.Len(t, nested.Paths, 2)

	_, err = ParsePolygon(map[string]any{"paths": []any{latLng(0, 0), latLng(1, 1)}})
	assert.True(t, errs.IsInvalidArguments(err))
}

func TestParseCircleAndPolyline(t *testing.T) {
	c, err := ParseCircle(map[string]any{"center": latLng(1, 2), "radius": 150.0, "tag": "zone"})
	require.NoError(t, err)
	assert.Equal(t, 150.0, c.Radius)
	assert.Equal(t, "zone", c.Tag)

	_, err = ParseCircle(map[string]any{"center": latLng(1, 2)})
	assert.True(t, errs.IsInvalidArguments(err))

	p, err := ParsePolyline(map[string]any{
		"path":       []any{latLng(0, 0), latLng(1, 1)},
		"styleSpans": []any{map[string]any{"color": "#ff0000", "segments": 1.0}},
	})
	require.NoError(t, err)
	assert.Len(t, p.Path, 2)
	assert.Len(t, p.StyleSpans, 1)

	_, err = ParsePolyline(map[string]any{"path": []any{latLng(0, 0)}})
	assert.True(t, errs.IsInvalidArguments(err))
}

func TestTileLayer_URL(t *testing.T) {
	tl, err := ParseTileLayer(map[string]any{"tileUrl": "https://tiles/{zoom}/{x}/{y}.png", "maxZoom": 10}, 0)
	require.NoError(t, err)
	assert.True(t, tl.Visible)

	assert.Equal(t, "https://tiles/4/3/5.png", tl.URL(maptile.New(3, 5, 4)))
	assert.Empty(t, tl.URL(maptile.New(3, 5, 11)))

	def, err := ParseTileLayer(map[string]any{"tileUrl": "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTileMaxZoom, def.MaxZoom)
}

func TestParseMultipleGroundOverlays(t *testing.T) {
	bounds := map[string]any{"southwest": latLng(0, 0), "northeast": latLng(1, 1)}

	mg, err := ParseMultipleGroundOverlays(map[string]any{
		"imageUrl": []any{"a.png", "b.png"},
		"bounds":   []any{bounds, bounds},
		"opacity":  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "b.png", mg.At(1).ImageURL)
	assert.Equal(t, 0.5, mg.At(1).Opacity)

	_, err = ParseMultipleGroundOverlays(map[string]any{
		"imageUrl": []any{"a.png", "b.png"},
		"bounds":   []any{bounds},
	})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidArguments(err))
	assert.Contains(t, err.Error(), "mismatched")
}

func TestParseList_NamesIndex(t *testing.T) {
	_, err := ParseList([]any{
		map[string]any{"coordinate": latLng(1, 1)},
		map[string]any{"coordinate": latLng(100, 1)},
	}, ParseMarker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 1")
}
