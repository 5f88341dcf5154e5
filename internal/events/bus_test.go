package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FiltersByKindAndMap(t *testing.T) {
	b := NewBus()

	var all, clicks, mapA []Event
	b.Subscribe(Filter{}, func(e Event) { all = append(all, e) })
	b.Subscribe(Filter{Kinds: []Kind{MarkerClick}}, func(e Event) { clicks = append(clicks, e) })
	b.Subscribe(Filter{MapID: "a"}, func(e Event) { mapA = append(mapA, e) })

	b.Publish(New(MarkerClick, "a", map[string]any{"markerId": "0"}))
	b.Publish(New(MapClick, "b", nil))

	assert.Len(t, all, 2)
	require.Len(t, clicks, 1)
	assert.Equal(t, "0", clicks[0].Data["markerId"])
	assert.Equal(t, "a", clicks[0].Data["mapId"])
	require.Len(t, mapA, 1)
	assert.Equal(t, MarkerClick, mapA[0].Kind)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	n := 0
	id := b.Subscribe(Filter{}, func(Event) { n++ })
	assert.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(id)
	b.Unsubscribe("unknown")
	b.Publish(New(MapReady, "a", nil))

	assert.Zero(t, n)
	assert.Zero(t, b.SubscriberCount())
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := NewBus()

	got := false
	b.Subscribe(Filter{}, func(Event) { panic("listener bug") })
	b.Subscribe(Filter{}, func(Event) { got = true })

	assert.NotPanics(t, func() { b.Publish(New(MapClick, "a", nil)) })
	assert.True(t, got)
}

func TestBus_Async(t *testing.T) {
	b := NewBusWithConfig(BusConfig{AsyncProcessing: true})

	var mu sync.Mutex
	n := 0
	b.Subscribe(Filter{}, func(Event) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	for range 5 {
		b.Publish(New(CameraIdle, "a", nil))
	}
	b.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, n)
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, ClusterInfoWindowClick.Valid())
	assert.False(t, Kind("onSomethingElse").Valid())
	assert.Len(t, Kinds, 17)
}
