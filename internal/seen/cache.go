// Package seen implements a time-bounded deduplication cache. The session
// layer uses it to recognise a duplicate out-of-band discovery reply from
// a sender it has already processed within the expiry window, so a burst
// of identical UDP replies doesn't re-trigger lookups or logging.
package seen

import (
	"sync"
	"time"
)

// DefaultExpiry bounds how long a key is remembered.
const DefaultExpiry = 5 * time.Second

// Cache is a concurrent-safe, string-keyed dedup store. Callers format
// their own key (e.g. endpoint text + gamename) since the cache doesn't
// know about any particular domain type.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	expiry  time.Duration
}

// New creates a Cache with the given expiry duration.
func New(expiry time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]time.Time),
		expiry:  expiry,
	}
}

// Seen reports whether key was added within the expiry window. It does not
// add key; an expired entry for key is removed.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Add records key with the configured expiry time. Returns true if key
// was not already present (i.e. this is new, not a duplicate).
func (c *Cache) Add(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.entries[key]; ok && time.Now().Before(exp) {
		return false
	}
	c.entries[key] = time.Now().Add(c.expiry)
	return true
}

// Reap removes expired entries. Callers drive this explicitly (e.g. once
// per poll tick) rather than via a background goroutine, keeping the
// session layer's single-threaded scheduling model intact.
func (c *Cache) Reap(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, exp := range c.entries {
		if now.After(exp) {
			delete(c.entries, k)
		}
	}
}
