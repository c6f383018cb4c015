package expand

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores expansion results keyed by normalized query text.
//
// The cache is an explicit injected dependency rather than a process-wide
// singleton so tests can swap in a map-backed fake and deployments can plug
// in a distributed store. Concurrent writers for the same query are
// acceptable to race (last-write-wins): expansions are idempotent content,
// not state that must stay consistent.
type Cache interface {
	// Get returns the cached queries for key, or ok=false on a miss.
	Get(key string) (queries []string, ok bool)

	// Set stores queries under key. Implementations are best-effort; a
	// failed write must be invisible to the caller.
	Set(key string, queries []string)

	// Evict removes key if present.
	Evict(key string)
}

// DefaultCacheTTL bounds how long an expansion entry stays valid.
const DefaultCacheTTL = 30 * time.Minute

// DefaultCacheSize bounds the entry count; least-recently-used entries are
// purged under pressure, which doubles as the staleness eviction policy for
// long-unused queries.
const DefaultCacheSize = 512

// MemoryCache is an in-process Cache backed by an expirable LRU.
// Safe for concurrent use.
type MemoryCache struct {
	lru *expirable.LRU[string, []string]
}

// NewMemoryCache creates a MemoryCache. size <= 0 uses DefaultCacheSize,
// ttl <= 0 uses DefaultCacheTTL.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []string](size, nil, ttl),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(key string) ([]string, bool) {
	return c.lru.Get(key)
}

// Set implements Cache.
func (c *MemoryCache) Set(key string, queries []string) {
	c.lru.Add(key, queries)
}

// Evict implements Cache.
func (c *MemoryCache) Evict(key string) {
	c.lru.Remove(key)
}

// CacheKey normalizes a query into its cache key: lowercased, trimmed, with
// internal whitespace runs collapsed to single spaces. "  Revenue Growth "
// and "revenue growth" share one entry.
func CacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
