package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
	"github.com/ekisa-team/mapbridge/internal/provider/memory"
)

func item(id string, lat, lng float64) Item {
	return Item{ID: id, Marker: overlay.Marker{Coordinate: geo.LatLng{Lat: lat, Lng: lng}, Title: "m" + id, Opacity: 1}}
}

func newSurface(t *testing.T, zoom float64) *memory.Surface {
	t.Helper()
	p := memory.New(memory.Options{})
	cfg := provider.Config{Width: 400, Height: 400, Center: geo.LatLng{}, Zoom: zoom}
	_, err := p.NewSurface(context.Background(), "m", cfg, nil)
	require.NoError(t, err)
	s, _ := p.Surface("m")
	return s
}

func runNow(fn func()) error {
	fn()
	return nil
}

func TestRadiusDegrees(t *testing.T) {
	assert.InDelta(t, 140.625, RadiusDegrees(100, 0), 1e-9)
	assert.InDelta(t, 140.625/1024, RadiusDegrees(100, 10), 1e-12)
}

func TestAlgorithm_Groups(t *testing.T) {
	a := NewAlgorithm()
	a.Add(
		item("0", 10, 10), item("1", 10.001, 10.001), item("2", 10.002, 10),
		item("3", -40, 100),
	)

	clusters := a.Clusters(10, 100)
	require.Len(t, clusters, 2)
	assert.Equal(t, 3, clusters[0].Size)
	assert.Equal(t, "0", clusters[0].Members[0].MarkerID)
	assert.Equal(t, "m1", clusters[0].Members[1].Title)
	assert.InDelta(t, 10.001, clusters[0].Position.Lat, 1e-9)
	assert.Equal(t, 1, clusters[1].Size)

	assert.Equal(t, 1, a.Remove("3", "missing"))
	assert.Len(t, a.Clusters(10, 100), 1)
}

func TestAlgorithm_ZoomSplitsGroups(t *testing.T) {
	a := NewAlgorithm()
	a.Add(item("0", 0, 0), item("1", 0, 1))

	assert.Len(t, a.Clusters(2, 100), 1)
	assert.Len(t, a.Clusters(12, 100), 2)
}

func TestCoordinator_MinClusterSize(t *testing.T) {
	s := newSurface(t, 10)
	c := New(Options{MinClusterSize: 3}, s, runNow)

	c.Add(item("0", 1, 1), item("1", 1.0001, 1.0001))
	assert.Equal(t, 2, s.Count(memory.KindCluster))
	for _, o := range s.Objects(memory.KindCluster) {
		assert.Equal(t, 1, o.Size)
	}

	c.Add(item("2", 1.0002, 1))
	views := s.Objects(memory.KindCluster)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].Size)
	assert.Equal(t, 3, c.MinClusterSize())
}

func TestCoordinator_ViewLookup(t *testing.T) {
	s := newSurface(t, 10)
	c := New(Options{MinClusterSize: 2}, s, runNow)
	c.Add(item("0", 1, 1), item("1", 1, 1.0001), item("2", 50, 50))

	var sawCluster, sawSingle bool
	for _, o := range s.Objects(memory.KindCluster) {
		for h := range c.views {
			if h.ID() != o.ID {
				continue
			}
			v, ok := c.View(h)
			require.True(t, ok)
			if v.MarkerID == "" {
				sawCluster = true
				assert.Equal(t, 2, v.Cluster.Size)
			} else {
				sawSingle = true
				assert.Equal(t, "2", v.MarkerID)
			}
		}
	}
	assert.True(t, sawCluster)
	assert.True(t, sawSingle)
}

func TestCoordinator_TeardownReturnsItems(t *testing.T) {
	s := newSurface(t, 10)
	c := New(Options{}, s, runNow)
	c.Add(item("0", 1, 1), item("1", 2, 2))

	items := c.Teardown()
	require.Len(t, items, 2)
	assert.Equal(t, "0", items[0].ID)
	assert.Zero(t, s.Count(memory.KindCluster))

	before := c.Recomputes()
	c.Recluster()
	c.CameraMoved()
	assert.Equal(t, before, c.Recomputes())
}

func TestCoordinator_DebouncedRecluster(t *testing.T) {
	s := newSurface(t, 10)
	c := New(Options{Debounce: 100 * time.Millisecond}, s, runNow)
	c.Add(item("0", 1, 1))
	base := c.Recomputes()

	start := time.Now()
	for i := range 10 {
		if i > 0 {
			time.Sleep(4 * time.Millisecond)
		}
		c.CameraMoved()
	}
	last := time.Now()
	assert.Less(t, last.Sub(start), 100*time.Millisecond)

	require.Eventually(t, func() bool { return c.Recomputes() == base+1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(last), 100*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, base+1, c.Recomputes())
}
