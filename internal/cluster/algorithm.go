// Package cluster groups markers by screen distance and renders the groups
// on behalf of a map while clustering is enabled.
package cluster

import (
	"cmp"
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/overlay"
)

// DefaultRadiusPx is the grouping distance in screen pixels.
const DefaultRadiusPx = 100

// Item is a marker handed over to the coordinator.
type Item struct {
	ID     string
	Marker overlay.Marker
}

// Member summarizes a clustered marker for events.
type Member struct {
	MarkerID string     `json:"markerId"`
	Position geo.LatLng `json:"position"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
}

// Cluster is one group of nearby items.
type Cluster struct {
	Position geo.LatLng `json:"position"`
	Size     int        `json:"size"`
	Members  []Member   `json:"items"`
}

type indexedItem struct {
	item Item
	seq  uint64
}

// Bounds implements rtreego.Spatial. Points get a small epsilon box since the
// tree needs non-zero extents.
func (i *indexedItem) Bounds() rtreego.Rect {
	const epsilon = 0.0001
	c := i.item.Marker.Coordinate
	rect, _ := rtreego.NewRect(rtreego.Point{c.Lng, c.Lat}, []float64{epsilon, epsilon})
	return rect
}

// Algorithm is a non-hierarchical, distance based grouping backed by an
// R-tree.
type Algorithm struct {
	tree  *rtreego.Rtree
	items map[string]*indexedItem
	seq   uint64
}

// NewAlgorithm creates an empty algorithm.
func NewAlgorithm() *Algorithm {
	return &Algorithm{
		tree:  rtreego.NewTree(2, 25, 50),
		items: make(map[string]*indexedItem),
	}
}

// Add inserts or replaces items.
func (a *Algorithm) Add(items ...Item) {
	for _, it := range items {
		if old, ok := a.items[it.ID]; ok {
			a.tree.Delete(old)
		}
		a.seq++
		ii := &indexedItem{item: it, seq: a.seq}
		a.items[it.ID] = ii
		a.tree.Insert(ii)
	}
}

// Remove deletes items by id and reports how many were known.
func (a *Algorithm) Remove(ids ...string) int {
	n := 0
	for _, id := range ids {
		if ii, ok := a.items[id]; ok {
			a.tree.Delete(ii)
			delete(a.items, id)
			n++
		}
	}
	return n
}

// Clear removes every item.
func (a *Algorithm) Clear() {
	a.tree = rtreego.NewTree(2, 25, 50)
	clear(a.items)
}

// Len returns the number of items.
func (a *Algorithm) Len() int {
	return len(a.items)
}

// Items returns the items in insertion order.
func (a *Algorithm) Items() []Item {
	sorted := a.sorted()
	out := make([]Item, len(sorted))
	for i, ii := range sorted {
		out[i] = ii.item
	}
	return out
}

func (a *Algorithm) sorted() []*indexedItem {
	out := make([]*indexedItem, 0, len(a.items))
	for _, ii := range a.items {
		out = append(out, ii)
	}
	slices.SortFunc(out, func(x, y *indexedItem) int { return cmp.Compare(x.seq, y.seq) })
	return out
}

// RadiusDegrees converts a pixel radius to degrees of longitude at zoom.
func RadiusDegrees(radiusPx, zoom float64) float64 {
	return radiusPx * 360 / (256 * math.Pow(2, zoom))
}

// Clusters groups the items at the given zoom. Each unvisited item, in
// insertion order, claims every unvisited item within radiusPx of it.
func (a *Algorithm) Clusters(zoom, radiusPx float64) []Cluster {
	if radiusPx <= 0 {
		radiusPx = DefaultRadiusPx
	}
	span := RadiusDegrees(radiusPx, zoom)

	visited := make(map[string]bool, len(a.items))
	var out []Cluster
	for _, ii := range a.sorted() {
		if visited[ii.item.ID] {
			continue
		}

		center := ii.item.Marker.Coordinate
		query, err := rtreego.NewRect(
			rtreego.Point{center.Lng - span, center.Lat - span},
			[]float64{2 * span, 2 * span},
		)
		if err != nil {
			continue
		}

		var group []*indexedItem
		for _, sp := range a.tree.SearchIntersect(query) {
			cand := sp.(*indexedItem)
			if !visited[cand.item.ID] {
				group = append(group, cand)
			}
		}
		slices.SortFunc(group, func(x, y *indexedItem) int { return cmp.Compare(x.seq, y.seq) })

		c := Cluster{Size: len(group), Members: make([]Member, 0, len(group))}
		points := make([]geo.LatLng, 0, len(group))
		for _, g := range group {
			visited[g.item.ID] = true
			m := g.item.Marker
			points = append(points, m.Coordinate)
			c.Members = append(c.Members, Member{
				MarkerID: g.item.ID,
				Position: m.Coordinate,
				Title:    m.Title,
				Snippet:  m.Snippet,
			})
		}
		c.Position = geo.Centroid(points)
		out = append(out, c)
	}
	return out
}
