package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/geo"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Platform() Platform {
	args := m.Called()
	return args.Get(0).(Platform)
}

func (m *MockProvider) NewSurface(ctx context.Context, mapID string, cfg Config, sink Sink) (Surface, error) {
	args := m.Called(ctx, mapID, cfg, sink)
	if s, ok := args.Get(0).(Surface); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	web := new(MockProvider)
	web.On("Platform").Return(PlatformWeb)

	require.NoError(t, reg.Register(web))

	got, ok := reg.Get(PlatformWeb)
	assert.True(t, ok)
	assert.Equal(t, web, got)

	_, ok = reg.Get(PlatformIOS)
	assert.False(t, ok)
}

func TestRegistry_DuplicateAndResolve(t *testing.T) {
	reg := NewRegistry()
	a := new(MockProvider)
	a.On("Platform").Return(PlatformAndroid)
	b := new(MockProvider)
	b.On("Platform").Return(PlatformAndroid)

	require.NoError(t, reg.Register(a))
	assert.ErrorIs(t, reg.Register(b), ErrAlreadyRegistered)

	_, err := reg.Resolve(PlatformIOS)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []Platform{PlatformAndroid}, reg.Platforms())
}

func TestConfig_Validate(t *testing.T) {
	ok := Config{Width: 300, Height: 200, Center: geo.LatLng{Lat: 1, Lng: 2}, Zoom: 8}
	assert.NoError(t, ok.Validate())

	noSize := ok
	noSize.Width = 0
	assert.Equal(t, errs.KindInvalidConfiguration, errs.KindOf(noSize.Validate()))

	badCenter := ok
	badCenter.Center.Lat = 91
	assert.Equal(t, errs.KindInvalidConfiguration, errs.KindOf(badCenter.Validate()))
}

func TestCameraUpdate_Apply(t *testing.T) {
	c := Camera{Target: geo.LatLng{Lat: 1, Lng: 1}, Zoom: 3, Bearing: 10, Tilt: 5}
	zoom := 12.0
	got := CameraUpdate{Zoom: &zoom}.Apply(c)

	assert.Equal(t, 12.0, got.Zoom)
	assert.Equal(t, c.Target, got.Target)
	assert.Equal(t, 10.0, got.Bearing)
}

func TestParseMapType(t *testing.T) {
	mt, ok := ParseMapType("Satellite")
	assert.True(t, ok)
	assert.Equal(t, MapTypeSatellite, mt)

	mt, ok = ParseMapType("roadmap")
	assert.False(t, ok)
	assert.Equal(t, MapTypeNormal, mt)
}

func TestVisibleSpanAndZoom(t *testing.T) {
	c := Camera{Target: geo.LatLng{Lat: 10, Lng: 20}, Zoom: 4}
	b := VisibleSpan(c, 512, 512)

	assert.True(t, b.Contains(c.Target))
	assert.InDelta(t, 45, b.Northeast.Lng-b.Southwest.Lng, 1e-9)

	z := ZoomForBounds(geo.NewBounds(geo.LatLng{Lat: 0, Lng: 0}, geo.LatLng{Lat: 1, Lng: 1}), 512, 512, 0)
	assert.Equal(t, 9.0, z)
}
