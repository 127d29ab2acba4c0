package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parametric-ai/searchdocs/pkg/models"
)

// keySeparator joins the normalized query and the raw context string.
const keySeparator = "||"

// Cache is an in-memory answer cache with lazy TTL expiry. Entries are
// removed when read past their TTL; there is no background sweep. Answers are
// stored by value and never mutated after insertion.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	answer    models.Answer
	createdAt time.Time
}

// New creates a Cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Key builds the cache key for a query and optional context. The query is
// lowercased and trimmed (strings.ToLower is locale-independent); the context
// string participates raw.
func Key(query, context string) string {
	key := strings.ToLower(strings.TrimSpace(query))
	if context != "" {
		key += keySeparator + context
	}
	return key
}

// Get retrieves a cached answer. Expired entries are deleted on read and
// reported as misses.
func (c *Cache) Get(key string) (models.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return models.Answer{}, false
	}
	if time.Since(e.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses.Add(1)
		return models.Answer{}, false
	}

	c.hits.Add(1)
	return e.answer, true
}

// Put stores an answer under the given key, replacing any existing entry.
func (c *Cache) Put(key string, answer models.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{answer: answer, createdAt: time.Now()}
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	count := int64(len(c.entries))
	c.mu.Unlock()

	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
