package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/maps"
	"github.com/ekisa-team/mapbridge/internal/provider/memory"
	"github.com/ekisa-team/mapbridge/internal/service"
)

type fixture struct {
	client *Client
	bus    *events.Bus
	prov   *memory.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	images := imagecache.New(imagecache.FetcherFunc(func(ctx context.Context, url string) (*imagecache.Image, error) {
		return &imagecache.Image{URL: url}, nil
	}))
	bus := events.NewBus()
	prov := memory.New(memory.Options{Platform: "android"})
	reg := maps.NewRegistry(prov, images, bus, maps.DefaultOptions())
	srv := NewServer(service.NewMaps(reg), bus)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
		_ = reg.Close(context.Background())
	})
	return &fixture{client: NewClient(conn), bus: bus, prov: prov}
}

func (f *fixture) create(t *testing.T, id string) {
	t.Helper()
	_, err := f.client.Invoke(context.Background(), "create", map[string]any{
		"id": id,
		"config": map[string]any{
			"width":  400,
			"height": 400,
			"center": map[string]any{"lat": 4.6, "lng": -74.1},
			"zoom":   10,
		},
	})
	require.NoError(t, err)
}

func TestInvoke_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "main")

	res, err := f.client.Invoke(ctx, "addMarkers", map[string]any{
		"id": "main",
		"markers": []any{
			map[string]any{"coordinate": map[string]any{"lat": 1, "lng": 2}},
			map[string]any{"coordinate": map[string]any{"lat": 3, "lng": 4}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"0", "1"}, res["ids"])

	res, err = f.client.Invoke(ctx, "getMapType", map[string]any{"id": "main"})
	require.NoError(t, err)
	assert.Equal(t, "Normal", res["type"])

	res, err = f.client.Invoke(ctx, "mapBoundsContains", map[string]any{
		"bounds": map[string]any{
			"southwest": map[string]any{"lat": 0, "lng": 0},
			"northeast": map[string]any{"lat": 10, "lng": 10},
		},
		"point": map[string]any{"lat": 5, "lng": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res["contains"])
}

func TestInvoke_ErrorKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "main")

	cases := []struct {
		name   string
		method string
		args   map[string]any
		code   codes.Code
		reason string
	}{
		{"unknown map", "addMarker", map[string]any{"id": "ghost"}, codes.NotFound, "MAP_NOT_FOUND"},
		{"unknown marker", "removeMarker", map[string]any{"id": "main", "markerId": "9"}, codes.NotFound, "ENTITY_NOT_FOUND"},
		{"bad payload", "addMarker", map[string]any{"id": "main", "marker": map[string]any{}}, codes.InvalidArgument, "INVALID_ARGUMENTS"},
		{"bad config", "create", map[string]any{"id": "x", "config": map[string]any{}}, codes.InvalidArgument, "INVALID_CONFIGURATION"},
		{"platform", "enableAccessibilityElements", map[string]any{"id": "main", "enabled": true}, codes.Unimplemented, "UNSUPPORTED_ON_PLATFORM"},
		{"permission", "enableCurrentLocation", map[string]any{"id": "main", "enabled": true}, codes.PermissionDenied, "PERMISSION_DENIED"},
		{"unknown method", "teleport", nil, codes.Unimplemented, ReasonUnknownMethod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.client.Invoke(ctx, tc.method, tc.args)
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))

			info, ok := ErrorInfo(err)
			require.True(t, ok)
			assert.Equal(t, tc.reason, info.GetReason())
			assert.Equal(t, ErrorDomain, info.GetDomain())
		})
	}
}

func TestInvoke_MissingMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Invoke(context.Background(), "", nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubscribe_StreamsFilteredEvents(t *testing.T) {
	f := newFixture(t)
	f.create(t, "main")
	f.create(t, "other")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := f.bus.SubscriberCount()
	stream, err := f.client.Subscribe(ctx, "main", string(events.MapClick))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.bus.SubscriberCount() == base+1 }, time.Second, 5*time.Millisecond)

	other, _ := f.prov.Surface("other")
	other.TapMap(geo.LatLng{Lat: 9, Lng: 9})
	main, _ := f.prov.Surface("main")
	main.TapMyLocationButton()
	main.TapMap(geo.LatLng{Lat: 1, Lng: 2})

	msg, err := stream.Recv()
	require.NoError(t, err)
	ev := msg.AsMap()
	assert.Equal(t, string(events.MapClick), ev["kind"])
	assert.Equal(t, "main", ev["mapId"])
	data := ev["data"].(map[string]any)
	assert.Equal(t, 1.0, data["latitude"])
	assert.Equal(t, "main", data["mapId"])

	cancel()
	require.Eventually(t, func() bool { return f.bus.SubscriberCount() == base }, time.Second, 5*time.Millisecond)
}

func TestSubscribe_RejectsUnknownKind(t *testing.T) {
	f := newFixture(t)

	stream, err := f.client.Subscribe(context.Background(), "", "onTeleport")
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus_CanceledCommand(t *testing.T) {
	err := toStatus(errs.Canceled("main", context.DeadlineExceeded))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	info, ok := ErrorInfo(err)
	require.True(t, ok)
	assert.Equal(t, string(errs.KindCanceled), info.GetReason())
	assert.Equal(t, "main", info.GetMetadata()["map_id"])

	err = toStatus(errs.Canceled("main", context.Canceled))
	assert.Equal(t, codes.Canceled, status.Code(err))

	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
}
