// Package memory is the in-process fallback for the stream-list cache when
// Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"webcaster/internal/core/domain"
)

type entry struct {
	items     []domain.StreamItem
	expiresAt time.Time
}

// StreamCache is a TTL map keyed by application name.
type StreamCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

func NewStreamCache(ttl time.Duration) *StreamCache {
	return &StreamCache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

func (c *StreamCache) Get(_ context.Context, application string) ([]domain.StreamItem, bool) {
	c.mu.RLock()
	e, ok := c.entries[application]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.items, true
}

func (c *StreamCache) Set(_ context.Context, application string, items []domain.StreamItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[application] = entry{
		items:     items,
		expiresAt: time.Now().Add(c.ttl),
	}
}
