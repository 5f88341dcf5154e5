package events

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Handler receives events. Handlers must not block for long when the bus
// delivers synchronously.
type Handler func(Event)

// BusConfig holds configuration for the bus.
type BusConfig struct {
	// AsyncProcessing delivers each publish on its own goroutine.
	AsyncProcessing bool
}

// DefaultBusConfig returns the default configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{AsyncProcessing: false}
}

type subscription struct {
	id    string
	kinds []Kind
	mapID string
	fn    Handler
}

func (s *subscription) matches(e Event) bool {
	if s.mapID != "" && s.mapID != e.MapID {
		return false
	}
	return len(s.kinds) == 0 || slices.Contains(s.kinds, e.Kind)
}

// Filter selects the events a subscriber receives. Empty fields match
// everything.
type Filter struct {
	Kinds []Kind
	MapID string
}

// Bus fans events out to subscribers. Publishing never fails.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	order  []string
	config BusConfig
	wg     sync.WaitGroup
}

// NewBus creates a bus with the default configuration.
func NewBus() *Bus {
	return NewBusWithConfig(DefaultBusConfig())
}

// NewBusWithConfig creates a bus with a custom configuration.
func NewBusWithConfig(config BusConfig) *Bus {
	return &Bus{
		subs:   make(map[string]*subscription),
		config: config,
	}
}

// Subscribe registers fn for the events selected by f and returns the
// subscription id.
func (b *Bus) Subscribe(f Filter, fn Handler) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[id] = &subscription{id: id, kinds: slices.Clone(f.Kinds), mapID: f.MapID, fn: fn}
	b.order = append(b.order, id)
	slog.Debug("Subscribed to map events", "subscription_id", id, "kinds", f.Kinds, "map_id", f.MapID)
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	b.order = slices.DeleteFunc(b.order, func(s string) bool { return s == id })
}

// SubscriberCount returns the number of subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Publish delivers e to every matching subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.order))
	for _, id := range b.order {
		if s := b.subs[id]; s.matches(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	if b.config.AsyncProcessing {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			deliver(e, targets)
		}()
		return
	}
	deliver(e, targets)
}

// Wait blocks until asynchronous deliveries in flight have finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func deliver(e Event, targets []*subscription) {
	for _, s := range targets {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event handler panicked", "subscription_id", s.id, "kind", e.Kind, "panic", r)
				}
			}()
			s.fn(e)
		}()
	}
}
