package orphan

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCacheSize bounds the number of remembered lookups
const DefaultCacheSize = 1024

// DefaultCacheTTL is how long a lookup answer is trusted
const DefaultCacheTTL = 10 * time.Minute

type cacheEntry struct {
	id      string
	exists  bool
	expires time.Time
}

// LookupCache is an LRU with expiry in front of another lookup. Failed
// lookups are not cached.
type LookupCache struct {
	next    IdentifierLookup
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

// NewLookupCache wraps next
func NewLookupCache(next IdentifierLookup, maxSize int, ttl time.Duration) *LookupCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LookupCache{
		next:    next,
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*list.Element, maxSize),
		order:   list.New(),
	}
}

// Exists implements IdentifierLookup
func (c *LookupCache) Exists(ctx context.Context, id string) (bool, error) {
	key := normalize(id)
	if exists, ok := c.get(key); ok {
		return exists, nil
	}

	exists, err := c.next.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	c.set(key, exists)
	return exists, nil
}

// Len returns the number of cached answers, expired ones included
func (c *LookupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LookupCache) get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		return false, false
	}
	c.order.MoveToFront(el)
	return entry.exists, true
}

func (c *LookupCache) set(key string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.exists = exists
		entry.expires = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).id)
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{
		id:      key,
		exists:  exists,
		expires: c.now().Add(c.ttl),
	})
}
