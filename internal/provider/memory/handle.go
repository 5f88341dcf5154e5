package memory

import (
	"github.com/ekisa-team/mapbridge/internal/geo"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
)

// handle implements provider.Handle, provider.TileHandle and
// provider.GroundHandle.
type handle struct {
	id string
	s  *Surface
}

func (h *handle) ID() string {
	return h.id
}

func (h *handle) Remove() {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	delete(h.s.objects, h.id)
	delete(h.s.handles, h.id)
}

func (h *handle) update(fn func(o *Object)) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if o, ok := h.s.objects[h.id]; ok {
		fn(o)
	}
}

func (h *handle) SetOpacity(opacity float64) {
	h.update(func(o *Object) { o.Opacity = opacity })
}

func (h *handle) SetBounds(b geo.Bounds) {
	h.update(func(o *Object) { o.Bounds = b })
}

func (h *handle) SetImage(img *imagecache.Image) {
	h.update(func(o *Object) { o.Image = img })
}

func (h *handle) SetVisible(visible bool) {
	h.update(func(o *Object) { o.Visible = visible })
}
