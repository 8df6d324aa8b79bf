package osdr

import (
	"sync"
	"time"
)

type cacheEntry struct {
	files      []File
	expiration time.Time
}

// Cache keeps file listings in memory for a limited time.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache holding at most maxSize listings.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &Cache{
		items:   make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns an unexpired listing.
func (c *Cache) Get(accession string) ([]File, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[accession]
	if !ok || c.now().After(entry.expiration) {
		return nil, false
	}
	return entry.files, true
}

// Set stores a listing, evicting the entry closest to expiry when full.
func (c *Cache) Set(accession string, files []File) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[accession]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[accession] = &cacheEntry{files: files, expiration: c.now().Add(c.ttl)}
}

// Delete removes one listing.
func (c *Cache) Delete(accession string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, accession)
}

// Clear removes all listings.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheEntry)
}

// Len returns the number of stored listings, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.items {
		if oldestKey == "" || entry.expiration.Before(oldest) {
			oldestKey = key
			oldest = entry.expiration
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
