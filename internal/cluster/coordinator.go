package cluster

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/mapbridge/internal/provider"
)

const (
	// DefaultMinClusterSize is the smallest group rendered as a cluster.
	DefaultMinClusterSize = 4
	// DefaultDebounce is the quiet period after the last camera move before
	// re-clustering.
	DefaultDebounce = 100 * time.Millisecond
)

// Options tune a coordinator.
type Options struct {
	MinClusterSize int
	RadiusPx       float64
	Debounce       time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = DefaultMinClusterSize
	}
	if o.RadiusPx <= 0 {
		o.RadiusPx = DefaultRadiusPx
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	return o
}

// Renderer is the part of a surface the coordinator draws on.
type Renderer interface {
	AddClusterView(v provider.ClusterView) (provider.Handle, error)
	Camera() provider.Camera
}

// View is a rendered cluster. MarkerID is set when the view stands for a
// single marker of a group below the minimum size.
type View struct {
	Handle   provider.Handle
	Cluster  Cluster
	MarkerID string
}

// Coordinator owns the markers of a map while clustering is enabled. Only
// cluster views are attached to the surface. Every method except CameraMoved
// must run on the map's ui loop.
type Coordinator struct {
	opts     Options
	renderer Renderer
	post     func(func()) error

	algo  *Algorithm
	views map[provider.Handle]*View

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	recomputes atomic.Int64
}

// New creates a coordinator. post schedules work on the map's ui loop and is
// used when a debounced re-cluster fires.
func New(opts Options, renderer Renderer, post func(func()) error) *Coordinator {
	return &Coordinator{
		opts:     opts.withDefaults(),
		renderer: renderer,
		post:     post,
		algo:     NewAlgorithm(),
		views:    make(map[provider.Handle]*View),
	}
}

// MinClusterSize returns the immutable minimum cluster size.
func (c *Coordinator) MinClusterSize() int {
	return c.opts.MinClusterSize
}

// Add hands items to the coordinator and re-clusters.
func (c *Coordinator) Add(items ...Item) {
	c.algo.Add(items...)
	c.Recluster()
}

// Remove drops items and re-clusters when any was known.
func (c *Coordinator) Remove(ids ...string) {
	if c.algo.Remove(ids...) > 0 {
		c.Recluster()
	}
}

// Items returns the delegated markers in insertion order.
func (c *Coordinator) Items() []Item {
	return c.algo.Items()
}

// Len returns the number of delegated markers.
func (c *Coordinator) Len() int {
	return c.algo.Len()
}

// Recluster recomputes the groups at the current zoom and replaces the
// rendered views.
func (c *Coordinator) Recluster() {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}

	c.recomputes.Add(1)
	c.clearViews()

	zoom := c.renderer.Camera().Zoom
	for _, cl := range c.algo.Clusters(zoom, c.opts.RadiusPx) {
		if cl.Size >= c.opts.MinClusterSize {
			c.render(provider.ClusterView{Position: cl.Position, Size: cl.Size}, cl, "")
			continue
		}
		for _, m := range cl.Members {
			item := c.algo.items[m.MarkerID].item
			single := Cluster{Position: m.Position, Size: 1, Members: []Member{m}}
			c.render(provider.ClusterView{Position: m.Position, Size: 1, Marker: &item.Marker}, single, m.MarkerID)
		}
	}
}

func (c *Coordinator) render(v provider.ClusterView, cl Cluster, markerID string) {
	h, err := c.renderer.AddClusterView(v)
	if err != nil {
		slog.Warn("Failed to render cluster view", "size", v.Size, "error", err)
		return
	}
	c.views[h] = &View{Handle: h, Cluster: cl, MarkerID: markerID}
}

func (c *Coordinator) clearViews() {
	for h := range c.views {
		h.Remove()
	}
	clear(c.views)
}

// View resolves a rendered view handle.
func (c *Coordinator) View(h provider.Handle) (View, bool) {
	v, ok := c.views[h]
	if !ok {
		return View{}, false
	}
	return *v, true
}

// Views returns the number of rendered views.
func (c *Coordinator) Views() int {
	return len(c.views)
}

// CameraMoved restarts the debounce timer. Only the last call of a burst
// leads to a re-cluster, posted to the ui loop once the timer expires. It is
// safe to call from any goroutine.
func (c *Coordinator) CameraMoved() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, func() {
		if err := c.post(c.Recluster); err != nil {
			slog.Debug("Dropped debounced re-cluster", "error", err)
		}
	})
}

// Recomputes returns how many times the groups were recomputed.
func (c *Coordinator) Recomputes() int64 {
	return c.recomputes.Load()
}

// Teardown stops the debounce timer, removes every view and forgets the
// delegated markers. It returns the markers it held.
func (c *Coordinator) Teardown() []Item {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	items := c.algo.Items()
	c.clearViews()
	c.algo.Clear()
	return items
}
