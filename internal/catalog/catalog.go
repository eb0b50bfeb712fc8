// Package catalog describes the external title catalog used to backfill
// missing metadata on watch-state writes.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/stremur/internal/model"
)

// Lookup resolves a media key to catalog metadata.
type Lookup interface {
	Lookup(ctx context.Context, key model.MediaKey) (*model.CatalogItem, error)
}

// Cached memoizes successful lookups for ttl. Failures are not cached.
type Cached struct {
	next Lookup
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	items map[model.MediaKey]cachedItem
	swept time.Time
}

type cachedItem struct {
	item    model.CatalogItem
	expires time.Time
}

// NewCached wraps next with an in-process cache.
func NewCached(next Lookup, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, now: time.Now, items: make(map[model.MediaKey]cachedItem)}
}

// Lookup returns the cached item or asks the wrapped catalog.
func (c *Cached) Lookup(ctx context.Context, key model.MediaKey) (*model.CatalogItem, error) {
	c.mu.Lock()
	if ci, ok := c.items[key]; ok {
		if c.now().Before(ci.expires) {
			c.mu.Unlock()
			item := ci.item
			return &item, nil
		}
		delete(c.items, key)
	}
	c.mu.Unlock()

	item, err := c.next.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	now := c.now()
	c.sweep(now)
	c.items[key] = cachedItem{item: *item, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return item, nil
}

// Len returns the number of cached entries, expired ones included.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// sweep drops expired entries at most once per ttl. c.mu must be held.
func (c *Cached) sweep(now time.Time) {
	if now.Before(c.swept.Add(c.ttl)) {
		return
	}
	for k, ci := range c.items {
		if !now.Before(ci.expires) {
			delete(c.items, k)
		}
	}
	c.swept = now
}
