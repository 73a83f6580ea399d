// ABOUTME: Thread-safe TTL cache remembering recent submissions and their results.
// ABOUTME: Used by create_repair_order to answer agent retries without creating a second order.

package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry stores the remembered value, its timestamp, and list element.
// A pending entry is a reservation whose value is not known yet; ready is
// closed when it resolves or goes away.
type cacheEntry struct {
	value     string
	timestamp time.Time
	element   *list.Element
	pending   bool
	ready     chan struct{}
}

// Cache provides a thread-safe, TTL-based, size-limited map from submission
// keys to the result they produced. Uses a doubly-linked list to maintain
// insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Key derives a cache key from submission fields. Parts are hashed so raw
// credentials never sit in memory as map keys.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the value remembered for key, if present, resolved and not expired.
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	if !ok || entry.pending || time.Since(entry.timestamp) >= c.ttl {
		return "", false
	}
	return entry.value, true
}

// Reserve atomically claims key. If a resolved value exists it is returned
// with seen=true. If another caller holds a pending reservation, Reserve
// waits for it to resolve or for ctx to end. Otherwise the caller now owns
// a pending reservation and must finish it with Remember or Forget.
func (c *Cache) Reserve(ctx context.Context, key string) (value string, seen bool, err error) {
	for {
		c.mu.Lock()
		entry, ok := c.seen[key]
		if ok && time.Since(entry.timestamp) < c.ttl {
			if !entry.pending {
				c.mu.Unlock()
				return entry.value, true, nil
			}
			ready := entry.ready
			c.mu.Unlock()

			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
		}

		if ok {
			c.removeLocked(key, entry)
		}
		c.insertLocked(key, &cacheEntry{
			timestamp: time.Now(),
			pending:   true,
			ready:     make(chan struct{}),
		})
		c.mu.Unlock()
		return "", false, nil
	}
}

// Remember records value for key, resolving a pending reservation. If the
// cache is at capacity, the oldest entry is evicted to make room.
func (c *Cache) Remember(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.seen[key]; exists {
		entry.value = value
		entry.timestamp = now
		c.resolveLocked(entry)
		c.order.MoveToBack(entry.element)
		return
	}

	c.insertLocked(key, &cacheEntry{value: value, timestamp: now})
}

// insertLocked adds a new entry, evicting the oldest at capacity.
// Must be called with mu held.
func (c *Cache) insertLocked(key string, entry *cacheEntry) {
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	entry.element = c.order.PushBack(key)
	c.seen[key] = entry
}

// resolveLocked wakes anyone waiting on a pending entry.
// Must be called with mu held.
func (c *Cache) resolveLocked(entry *cacheEntry) {
	if entry.pending {
		entry.pending = false
		close(entry.ready)
	}
}

// removeLocked deletes key, waking waiters if it was pending.
// Must be called with mu held.
func (c *Cache) removeLocked(key string, entry *cacheEntry) {
	c.resolveLocked(entry)
	c.order.Remove(entry.element)
	delete(c.seen, key)
}

// Forget drops key, releasing a pending reservation.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		c.removeLocked(key, entry)
	}
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.removeLocked(key, c.seen[key])
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.removeLocked(key, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
