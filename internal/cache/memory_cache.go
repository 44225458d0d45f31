package cache

import (
	"context"
	"sync"
	"time"

	"merlionpos/internal/domain"
)

type memoryEntry struct {
	product   domain.Product
	expiresAt time.Time
}

// MemoryProductCache is the single-process default when no redis address is
// configured. Expired entries are dropped lazily on read.
type MemoryProductCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryProductCache() *MemoryProductCache {
	return &MemoryProductCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryProductCache) Get(_ context.Context, code string) (*domain.Product, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[code]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, code)
		c.mu.Unlock()
		return nil, false, nil
	}
	product := entry.product
	return &product, true, nil
}

func (c *MemoryProductCache) Set(_ context.Context, product *domain.Product, ttl time.Duration) error {
	if product == nil {
		return nil
	}
	entry := memoryEntry{product: *product}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[product.Code] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryProductCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	delete(c.entries, code)
	c.mu.Unlock()
	return nil
}
