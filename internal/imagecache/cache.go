// Package imagecache is the process-wide URL to decoded image cache shared by
// every map instance. Entries are never invalidated.
package imagecache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Image is a fetched and decoded image.
type Image struct {
	URL         string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Fetcher loads an image by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Image, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (*Image, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Image, error) {
	return f(ctx, url)
}

// Stats counts cache activity.
type Stats struct {
	Hits    int64 `json:"hits"`
	Fetches int64 `json:"fetches"`
	Failed  int64 `json:"failed"`
}

// Cache holds decoded images keyed by URL. Concurrent loads of the same URL
// share one fetch; failures are not cached.
type Cache struct {
	fetcher Fetcher
	group   singleflight.Group

	mu     sync.RWMutex
	images map[string]*Image

	hits    atomic.Int64
	fetches atomic.Int64
	failed  atomic.Int64
}

// New creates an empty cache backed by fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		images:  make(map[string]*Image),
	}
}

// Get returns the image for url, fetching it on first use.
func (c *Cache) Get(ctx context.Context, url string) (*Image, error) {
	c.mu.RLock()
	img, ok := c.images[url]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return img, nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.images[url]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		c.fetches.Add(1)
		img, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			c.failed.Add(1)
			return nil, err
		}

		c.mu.Lock()
		c.images[url] = img
		c.mu.Unlock()

		slog.Debug("Image cached", "url", url, "bytes", len(img.Data))
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Image), nil
}

// Peek returns the cached image for url without fetching.
func (c *Cache) Peek(url string) (*Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img, ok := c.images[url]
	return img, ok
}

// Contains reports whether url is cached.
func (c *Cache) Contains(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.images[url]
	return ok
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.images)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Fetches: c.fetches.Load(),
		Failed:  c.failed.Load(),
	}
}
