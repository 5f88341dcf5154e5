package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/maps"
	"github.com/ekisa-team/mapbridge/internal/provider/memory"
)

func newService(t *testing.T, opts memory.Options) (*Maps, *memory.Provider) {
	t.Helper()

	images := imagecache.New(imagecache.FetcherFunc(func(ctx context.Context, url string) (*imagecache.Image, error) {
		return &imagecache.Image{URL: url, Width: 8, Height: 8}, nil
	}))
	prov := memory.New(opts)
	reg := maps.NewRegistry(prov, images, events.NewBus(), maps.DefaultOptions())
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return NewMaps(reg), prov
}

func createArgs(id string) map[string]any {
	return map[string]any{
		"id": id,
		"config": map[string]any{
			"width":  400.0,
			"height": 300.0,
			"center": map[string]any{"lat": 4.6, "lng": -74.1},
			"zoom":   10.0,
		},
	}
}

func point(lat, lng float64) map[string]any {
	return map[string]any{"lat": lat, "lng": lng}
}

func TestInvoke_CreateAndMarkers(t *testing.T) {
	s, prov := newService(t, memory.Options{})
	ctx := context.Background()

	res, err := s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = s.Invoke(ctx, "addMarker", map[string]any{
		"id":     "main",
		"marker": map[string]any{"coordinate": point(1, 2), "title": "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0", res["id"])

	res, err = s.Invoke(ctx, "addMarkers", map[string]any{
		"id": "main",
		"markers": []any{
			map[string]any{"coordinate": point(1, 2)},
			map[string]any{"coordinate": point(3, 4)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "2"}, res["ids"])

	surface, ok := prov.Surface("main")
	require.True(t, ok)
	assert.Equal(t, 3, surface.Count(memory.KindMarker))
}

func TestInvoke_MapNotFoundWinsOverMalformedPayload(t *testing.T) {
	s, _ := newService(t, memory.Options{})
	ctx := context.Background()

	for _, method := range []string{"addMarker", "addMarkers", "addPolygons", "setCamera", "addOrUpdateGroundOverlay", "removeMarkers"} {
		t.Run(method, func(t *testing.T) {
			_, err := s.Invoke(ctx, method, map[string]any{"id": "ghost", "marker": "not an object", "markers": 12})
			require.Error(t, err)
			assert.True(t, errs.IsMapNotFound(err), "got %v", err)
		})
	}

	_, err := s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	_, err = s.Invoke(ctx, "addMarker", map[string]any{"id": "main", "marker": "not an object"})
	assert.True(t, errs.IsInvalidArguments(err))
}

func TestInvoke_BatchRemovalAsymmetry(t *testing.T) {
	s, prov := newService(t, memory.Options{})
	ctx := context.Background()

	_, err := s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	res, err := s.Invoke(ctx, "addMarkers", map[string]any{
		"id":      "main",
		"markers": []any{map[string]any{"coordinate": point(1, 2)}, map[string]any{"coordinate": point(3, 4)}},
	})
	require.NoError(t, err)
	ids := res["ids"].([]any)

	_, err = s.Invoke(ctx, "removeMarkers", map[string]any{"id": "main", "markerIds": []any{ids[0], "999"}})
	require.NoError(t, err)

	surface, _ := prov.Surface("main")
	assert.Equal(t, 1, surface.Count(memory.KindMarker))

	_, err = s.Invoke(ctx, "removeMarker", map[string]any{"id": "main", "markerId": "999"})
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.ErrorIs(t, err, &errs.Error{Kind: errs.KindEntityNotFound, Entity: errs.EntityMarker})
}

func TestInvoke_CreateValidation(t *testing.T) {
	s, _ := newService(t, memory.Options{})
	ctx := context.Background()

	_, err := s.Invoke(ctx, "create", map[string]any{"id": "main"})
	assert.Equal(t, errs.KindInvalidConfiguration, errs.KindOf(err))

	_, err = s.Invoke(ctx, "create", map[string]any{
		"id":     "main",
		"config": map[string]any{"width": 100.0, "height": 100.0},
	})
	assert.Equal(t, errs.KindInvalidConfiguration, errs.KindOf(err))

	_, err = s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	_, err = s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, s.Registry().List())

	_, err = s.Invoke(ctx, "destroy", map[string]any{"id": "main"})
	require.NoError(t, err)
	_, err = s.Invoke(ctx, "destroy", map[string]any{"id": "main"})
	assert.True(t, errs.IsMapNotFound(err))
}

func TestInvoke_MapTypeAndBounds(t *testing.T) {
	s, _ := newService(t, memory.Options{})
	ctx := context.Background()

	_, err := s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)

	res, err := s.Invoke(ctx, "getMapType", map[string]any{"id": "main"})
	require.NoError(t, err)
	assert.Equal(t, "Normal", res["type"])

	_, err = s.Invoke(ctx, "setMapType", map[string]any{"id": "main", "mapType": "Satellite"})
	require.NoError(t, err)
	res, err = s.Invoke(ctx, "getMapType", map[string]any{"id": "main"})
	require.NoError(t, err)
	assert.Equal(t, "Satellite", res["type"])

	_, err = s.Invoke(ctx, "setMapType", map[string]any{"id": "main", "mapType": "Moon"})
	assert.True(t, errs.IsInvalidArguments(err))

	res, err = s.Invoke(ctx, "getMapBounds", map[string]any{"id": "main"})
	require.NoError(t, err)
	b := res["bounds"].(map[string]any)
	assert.Contains(t, b, "southwest")
	assert.Contains(t, b, "center")
	assert.Contains(t, b, "northeast")
}

func TestInvoke_PureBoundsHelpers(t *testing.T) {
	s, _ := newService(t, memory.Options{})
	ctx := context.Background()

	bounds := map[string]any{"southwest": point(0, 0), "northeast": point(1, 1)}

	res, err := s.Invoke(ctx, "mapBoundsContains", map[string]any{"bounds": bounds, "point": point(0.5, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, true, res["contains"])

	res, err = s.Invoke(ctx, "mapBoundsContains", map[string]any{"bounds": bounds, "point": point(2, 2)})
	require.NoError(t, err)
	assert.Equal(t, false, res["contains"])

	res, err = s.Invoke(ctx, "mapBoundsExtend", map[string]any{"bounds": bounds, "point": point(2, 3)})
	require.NoError(t, err)
	ne := res["bounds"].(map[string]any)["northeast"].(map[string]any)
	assert.Equal(t, 2.0, ne["lat"])
	assert.Equal(t, 3.0, ne["lng"])

	_, err = s.Invoke(ctx, "mapBoundsContains", map[string]any{"bounds": bounds})
	assert.True(t, errs.IsInvalidArguments(err))
}

func TestInvoke_GroundOverlaysAndTiles(t *testing.T) {
	s, prov := newService(t, memory.Options{})
	ctx := context.Background()

	_, err := s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	bounds := map[string]any{"southwest": point(0, 0), "northeast": point(1, 1)}

	res, err := s.Invoke(ctx, "addGroundOverlay", map[string]any{
		"id":      "main",
		"overlay": map[string]any{"imageUrl": "https://img/a.png", "bounds": bounds},
	})
	require.NoError(t, err)
	first := res["id"]

	res, err = s.Invoke(ctx, "addOrUpdateGroundOverlay", map[string]any{
		"id":      "main",
		"overlay": map[string]any{"imageUrl": "https://img/a.png", "bounds": bounds, "opacity": 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, first, res["id"])

	_, err = s.Invoke(ctx, "setOverlayOpacity", map[string]any{"id": "main", "opacity": 0.9})
	require.NoError(t, err)

	_, err = s.Invoke(ctx, "removeGroundOverlay", map[string]any{"id": "main", "overlayId": "77"})
	assert.True(t, errs.IsNotFound(err))

	res, err = s.Invoke(ctx, "addTileLayer", map[string]any{
		"id":        "main",
		"tileLayer": map[string]any{"tileUrl": "https://t/{zoom}/{x}/{y}.png"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res["id"])

	_, err = s.Invoke(ctx, "setTileLayerOpacity", map[string]any{"id": "main", "opacity": 0.3})
	require.NoError(t, err)

	surface, _ := prov.Surface("main")
	assert.Equal(t, 1, surface.Count(memory.KindGround))
	assert.Equal(t, 0.3, surface.Objects(memory.KindTile)[0].Opacity)
}

func TestInvoke_UnknownMethod(t *testing.T) {
	s, _ := newService(t, memory.Options{})

	_, err := s.Invoke(context.Background(), "launchRocket", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Contains(t, s.Methods(), "enableAccessibilityElements")
	assert.Contains(t, s.Methods(), "addGroundOverlay")
}

func TestInvoke_MapSettingsAndShapes(t *testing.T) {
	s, prov := newService(t, memory.Options{})
	ctx := context.Background()

	_, err := s.Invoke(ctx, "create", createArgs("main"))
	require.NoError(t, err)
	surface, _ := prov.Surface("main")

	_, err = s.Invoke(ctx, "disableTouch", map[string]any{"id": "main"})
	require.NoError(t, err)
	assert.False(t, surface.State().Touch)
	_, err = s.Invoke(ctx, "enableTouch", map[string]any{"id": "main"})
	require.NoError(t, err)
	assert.True(t, surface.State().Touch)

	_, err = s.Invoke(ctx, "setPadding", map[string]any{
		"id":      "main",
		"padding": map[string]any{"top": 10.0, "left": 4.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, surface.State().Padding.Top)
	assert.Equal(t, 4, surface.State().Padding.Left)

	_, err = s.Invoke(ctx, "updateMapOptions", map[string]any{
		"id":      "main",
		"options": map[string]any{"zoom": 14.0, "center": point(1, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 14.0, surface.Camera().Zoom)

	_, err = s.Invoke(ctx, "updateMapOptions", map[string]any{
		"id":      "main",
		"options": map[string]any{"center": point(120, 0)},
	})
	assert.True(t, errs.IsInvalidArguments(err))

	res, err := s.Invoke(ctx, "addCircles", map[string]any{
		"id":      "main",
		"circles": []any{map[string]any{"center": point(1, 1), "radius": 50.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"0"}, res["ids"])
	assert.Equal(t, 1, surface.Count(memory.KindCircle))

	res, err = s.Invoke(ctx, "addPolylines", map[string]any{
		"id":        "main",
		"polylines": []any{map[string]any{"path": []any{point(0, 0), point(1, 1)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"0"}, res["ids"])

	_, err = s.Invoke(ctx, "removeCircles", map[string]any{"id": "main", "circleIds": []any{"0", "5"}})
	require.NoError(t, err)
	assert.Equal(t, 0, surface.Count(memory.KindCircle))
	assert.Equal(t, 1, surface.Count(memory.KindPolyline))
}
