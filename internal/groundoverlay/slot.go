// Package groundoverlay manages the ground overlays of one map: a single
// current overlay and a set of overlays addressed by caller index. Images are
// always resolved before a handle is attached or swapped.
package groundoverlay

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/overlay"
	"github.com/ekisa-team/mapbridge/internal/provider"
)

// NoneCreated is returned by UpsertMany when no entry was created or touched.
const NoneCreated = "0"

const maxConcurrentFetches = 8

// Surface is the part of a map surface the slot attaches to.
type Surface interface {
	AddGroundOverlay(g overlay.GroundOverlay, img *imagecache.Image) (provider.GroundHandle, error)
}

// Images resolves image URLs.
type Images interface {
	Get(ctx context.Context, url string) (*imagecache.Image, error)
}

// Runner executes fn on the map's ui loop and waits for it.
type Runner func(ctx context.Context, fn func() error) error

// Entry is a snapshot of an attached ground overlay.
type Entry struct {
	ID         string
	Index      int
	Descriptor overlay.GroundOverlay
	Handle     provider.GroundHandle
	Visible    bool
	HasImage   bool
}

type entry struct {
	Entry
	indexed bool
}

// Slot holds the ground overlays of one map.
type Slot struct {
	surface Surface
	images  Images
	run     Runner
	alloc   overlay.Allocator

	mu      sync.RWMutex
	current *entry
	indexed map[int]*entry
	byID    map[string]*entry
}

// New creates an empty slot.
func New(surface Surface, images Images, run Runner) *Slot {
	return &Slot{
		surface: surface,
		images:  images,
		run:     run,
		indexed: make(map[int]*entry),
		byID:    make(map[string]*entry),
	}
}

// resolve loads an image, degrading to nil on failure.
func (s *Slot) resolve(ctx context.Context, url string) *imagecache.Image {
	img, err := s.images.Get(ctx, url)
	if err != nil {
		slog.Warn("Failed to load ground overlay image, using geometry only", "url", url, "error", err)
		return nil
	}
	return img
}

func (s *Slot) attach(d overlay.GroundOverlay, img *imagecache.Image, index int, indexed bool) (*entry, error) {
	h, err := s.surface.AddGroundOverlay(d, img)
	if err != nil {
		return nil, err
	}
	e := &entry{
		Entry: Entry{
			ID:         s.alloc.Next(),
			Index:      index,
			Descriptor: d,
			Handle:     h,
			Visible:    true,
			HasImage:   img != nil,
		},
		indexed: indexed,
	}
	s.byID[e.ID] = e
	return e, nil
}

func (e *entry) refresh(d overlay.GroundOverlay, img *imagecache.Image) {
	e.Handle.SetBounds(d.Bounds)
	e.Handle.SetOpacity(d.Opacity)
	if img != nil {
		e.Handle.SetImage(img)
		e.HasImage = true
	} else if d.ImageURL != e.Descriptor.ImageURL {
		e.HasImage = false
	}
	if !e.Visible {
		e.Handle.SetVisible(true)
		e.Visible = true
	}
	e.Descriptor = d
}

// Upsert updates the current overlay in place or creates it. An image that
// fails to load leaves a geometry only overlay; the call still succeeds.
func (s *Slot) Upsert(ctx context.Context, d overlay.GroundOverlay) (string, error) {
	if err := d.Validate(); err != nil {
		return "", errs.InvalidArguments("invalid ground overlay: %v", err)
	}

	img := s.resolve(ctx, d.ImageURL)

	var id string
	err := s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.current != nil {
			s.current.refresh(d, img)
			id = s.current.ID
			return nil
		}
		e, err := s.attach(d, img, 0, false)
		if err != nil {
			return err
		}
		s.current = e
		id = e.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpsertMany applies the indexed payload. Every image is resolved before any
// entry is touched. Entries from earlier calls beyond the payload are hidden,
// not removed.
func (s *Slot) UpsertMany(ctx context.Context, m overlay.MultipleGroundOverlays) (string, error) {
	if err := m.Validate(); err != nil {
		return "", errs.InvalidArguments("invalid ground overlays: %v", err)
	}

	imgs := make([]*imagecache.Image, len(m.ImageURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, url := range m.ImageURLs {
		g.Go(func() error {
			imgs[i] = s.resolve(gctx, url)
			return nil
		})
	}
	_ = g.Wait()

	result := NoneCreated
	err := s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		var created, touched string
		for i := range m.ImageURLs {
			d := m.At(i)
			e, ok := s.indexed[i]
			if !ok {
				ne, err := s.attach(d, imgs[i], i, true)
				if err != nil {
					slog.Warn("Failed to attach ground overlay", "index", i, "error", err)
					continue
				}
				s.indexed[i] = ne
				if created == "" {
					created = ne.ID
				}
				continue
			}

			img := imgs[i]
			if e.Descriptor.ImageURL == d.ImageURL && e.HasImage {
				img = nil
			}
			e.refresh(d, img)
			if touched == "" {
				touched = e.ID
			}
		}

		for idx, e := range s.indexed {
			if idx >= len(m.ImageURLs) && e.Visible {
				e.Handle.SetVisible(false)
				e.Visible = false
			}
		}

		switch {
		case created != "":
			result = created
		case touched != "":
			result = touched
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// SetOpacity changes the opacity of the current overlay, or of every indexed
// overlay when there is no current one.
func (s *Slot) SetOpacity(ctx context.Context, opacity float64) error {
	if opacity < 0 || opacity > 1 {
		return errs.InvalidArguments("opacity %v out of range [0, 1]", opacity)
	}
	return s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.current != nil {
			s.current.Handle.SetOpacity(opacity)
			s.current.Descriptor.Opacity = opacity
			return nil
		}
		if len(s.indexed) == 0 {
			return errs.NotFound(errs.EntityOverlay, "current")
		}
		for _, e := range s.indexed {
			e.Handle.SetOpacity(opacity)
			e.Descriptor.Opacity = opacity
		}
		return nil
	})
}

// SetCurrentImage swaps the image of the current overlay once url resolves.
// A failed load keeps the old image and only applies the opacity.
func (s *Slot) SetCurrentImage(ctx context.Context, url string, opacity float64) error {
	if url == "" {
		return errs.InvalidArguments("imageUrl is required")
	}
	if opacity < 0 || opacity > 1 {
		return errs.InvalidArguments("opacity %v out of range [0, 1]", opacity)
	}

	var target string
	err := s.run(ctx, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		if s.current == nil {
			return errs.NotFound(errs.EntityOverlay, "current")
		}
		target = s.current.ID
		return nil
	})
	if err != nil {
		return err
	}

	img := s.resolve(ctx, url)

	return s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		// The overlay may have been replaced while the image loaded.
		if s.current == nil || s.current.ID != target {
			return nil
		}
		s.current.Handle.SetOpacity(opacity)
		s.current.Descriptor.Opacity = opacity
		if img != nil {
			s.current.Handle.SetImage(img)
			s.current.Descriptor.ImageURL = url
			s.current.HasImage = true
		}
		return nil
	})
}

// RemoveCurrent detaches the current overlay. It is a no-op when there is
// none.
func (s *Slot) RemoveCurrent(ctx context.Context) error {
	return s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.current != nil {
			s.drop(s.current)
		}
		return nil
	})
}

// Remove detaches the overlay with the given id.
func (s *Slot) Remove(ctx context.Context, id string) error {
	return s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		e, ok := s.byID[id]
		if !ok {
			return errs.NotFound(errs.EntityOverlay, id)
		}
		s.drop(e)
		return nil
	})
}

// RemoveAll detaches every overlay.
func (s *Slot) RemoveAll(ctx context.Context) error {
	return s.run(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, e := range s.byID {
			e.Handle.Remove()
		}
		s.current = nil
		clear(s.indexed)
		clear(s.byID)
		return nil
	})
}

// drop must be called with mu held.
func (s *Slot) drop(e *entry) {
	e.Handle.Remove()
	delete(s.byID, e.ID)
	if s.current == e {
		s.current = nil
	}
	if e.indexed {
		delete(s.indexed, e.Index)
	}
}

// Close detaches every overlay and drops all state. Unlike RemoveAll it does
// not go through the runner, so it must be called on the ui loop.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.byID {
		e.Handle.Remove()
	}
	s.current = nil
	clear(s.indexed)
	clear(s.byID)
}

// Current returns the current overlay.
func (s *Slot) Current() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Entry{}, false
	}
	return s.current.Entry, true
}

// Indexed returns the indexed overlays ordered by index.
func (s *Slot) Indexed() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.indexed))
	for _, e := range s.indexed {
		out = append(out, e.Entry)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Index, b.Index) })
	return out
}

// Len returns the number of attached overlays, hidden ones included.
func (s *Slot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byID)
}
