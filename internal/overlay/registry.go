// Package overlay holds the overlay descriptors, their payload parsers and the
// generic identifier-keyed registry each map keeps per overlay kind.
package overlay

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/ekisa-team/mapbridge/internal/errs"
)

// Handle is a provider-native object attached to a map surface.
type Handle interface {
	comparable
	Remove()
}

// Allocator issues monotonically increasing decimal identifiers. Identifiers
// are never reused, even after the entity they named is removed.
type Allocator struct {
	mu   sync.Mutex
	next uint64
}

// Next returns a fresh identifier.
func (a *Allocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.next
	a.next++
	return strconv.FormatUint(id, 10)
}

// Entry is one registered overlay.
type Entry[D Descriptor, H Handle] struct {
	ID         string
	Descriptor D
	// Handle is the zero value while the overlay is not directly attached
	// (for example while its marker is owned by a cluster).
	Handle H

	seq uint64
}

// BuildFunc creates and attaches the provider handle for a descriptor. It may
// return the zero handle to register the overlay without attaching it.
type BuildFunc[D Descriptor, H Handle] func(D) (H, error)

// Registry maps identifiers to descriptors and provider handles for one
// overlay kind of one map.
type Registry[D Descriptor, H Handle] struct {
	entity string
	alloc  Allocator

	mu       sync.RWMutex
	seq      uint64
	entries  map[string]*Entry[D, H]
	byHandle map[H]string
}

// NewRegistry creates an empty registry. entity names the kind in not-found
// errors.
func NewRegistry[D Descriptor, H Handle](entity string) *Registry[D, H] {
	return &Registry[D, H]{
		entity:   entity,
		entries:  make(map[string]*Entry[D, H]),
		byHandle: make(map[H]string),
	}
}

// Entity returns the entity name of the registry.
func (r *Registry[D, H]) Entity() string {
	return r.entity
}

// Add validates d, builds its handle and stores it under a new identifier.
func (r *Registry[D, H]) Add(d D, build BuildFunc[D, H]) (string, error) {
	if err := d.Validate(); err != nil {
		return "", errs.InvalidArguments("invalid %s: %v", r.entity, err)
	}

	h, err := build(d)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store(d, h), nil
}

// AddBatch adds every descriptor or none. All descriptors are validated before
// any handle is built; if a build fails, the handles already built for this
// batch are removed. The returned identifiers follow the input order.
func (r *Registry[D, H]) AddBatch(ds []D, build BuildFunc[D, H]) ([]string, error) {
	for i, d := range ds {
		if err := d.Validate(); err != nil {
			return nil, errs.InvalidArguments("invalid %s at index %d: %v", r.entity, i, err).
				WithDetail("index", i)
		}
	}

	var zero H
	handles := make([]H, 0, len(ds))
	for i, d := range ds {
		h, err := build(d)
		if err != nil {
			for _, built := range handles {
				if built != zero {
					built.Remove()
				}
			}
			return nil, fmt.Errorf("%s at index %d: %w", r.entity, i, err)
		}
		handles = append(handles, h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = r.store(d, handles[i])
	}
	return ids, nil
}

func (r *Registry[D, H]) store(d D, h H) string {
	id := r.alloc.Next()
	r.seq++
	r.entries[id] = &Entry[D, H]{ID: id, Descriptor: d, Handle: h, seq: r.seq}

	var zero H
	if h != zero {
		r.byHandle[h] = id
	}
	return id
}

// Remove detaches and deletes id. Unknown identifiers are reported as
// EntityNotFound.
func (r *Registry[D, H]) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		r.drop(e)
	}
	r.mu.Unlock()

	if !ok {
		return errs.NotFound(r.entity, id)
	}
	r.release(e.Handle)
	return nil
}

// RemoveBatch removes every known id and skips the rest. It returns the
// identifiers that were actually removed.
func (r *Registry[D, H]) RemoveBatch(ids []string) []string {
	r.mu.Lock()
	removed := make([]*Entry[D, H], 0, len(ids))
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			r.drop(e)
			removed = append(removed, e)
		}
	}
	r.mu.Unlock()

	out := make([]string, 0, len(removed))
	for _, e := range removed {
		r.release(e.Handle)
		out = append(out, e.ID)
	}
	return out
}

func (r *Registry[D, H]) drop(e *Entry[D, H]) {
	delete(r.entries, e.ID)
	var zero H
	if e.Handle != zero {
		delete(r.byHandle, e.Handle)
	}
}

func (r *Registry[D, H]) release(h H) {
	var zero H
	if h != zero {
		h.Remove()
	}
}

// Get returns a copy of the entry for id.
func (r *Registry[D, H]) Get(id string) (Entry[D, H], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry[D, H]{}, false
	}
	return *e, true
}

// Lookup resolves a provider handle back to its identifier.
func (r *Registry[D, H]) Lookup(h H) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHandle[h]
	return id, ok
}

// Entries returns copies of all entries in insertion order.
func (r *Registry[D, H]) Entries() []Entry[D, H] {
	r.mu.RLock()
	out := make([]Entry[D, H], 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry[D, H]) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// IDs returns all identifiers in insertion order.
func (r *Registry[D, H]) IDs() []string {
	entries := r.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// Len returns the number of registered overlays.
func (r *Registry[D, H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Detach removes the handle of id from the surface but keeps the entry.
func (r *Registry[D, H]) Detach(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	var h, zero H
	if ok {
		h = e.Handle
		if h != zero {
			delete(r.byHandle, h)
		}
		e.Handle = zero
	}
	r.mu.Unlock()

	if !ok {
		return errs.NotFound(r.entity, id)
	}
	r.release(h)
	return nil
}

// Rebind stores a new handle for id, removing the previous one if any.
func (r *Registry[D, H]) Rebind(id string, h H) error {
	var zero H

	r.mu.Lock()
	e, ok := r.entries[id]
	var prev H
	if ok {
		prev = e.Handle
		if prev != zero {
			delete(r.byHandle, prev)
		}
		e.Handle = h
		if h != zero {
			r.byHandle[h] = id
		}
	}
	r.mu.Unlock()

	if !ok {
		return errs.NotFound(r.entity, id)
	}
	if prev != h {
		r.release(prev)
	}
	return nil
}

// Clear detaches and deletes every entry. The identifier counter is kept.
func (r *Registry[D, H]) Clear() {
	r.mu.Lock()
	old := r.entries
	r.entries = make(map[string]*Entry[D, H])
	r.byHandle = make(map[H]string)
	r.mu.Unlock()

	for _, e := range old {
		r.release(e.Handle)
	}
}
