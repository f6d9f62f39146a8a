package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/Ayash-Bera/calypso/backend/internal/semantic"
	"github.com/sirupsen/logrus"
)

// Entry is one cached query with its results and derived semantics.
// Entries are owned by the Cache; callers always receive copies.
type Entry struct {
	Key       string          `json:"normalizedKey"`
	Query     string          `json:"originalQuery"`
	Results   []models.Result `json:"results"`
	Semantics semantic.Tag    `json:"semantics"`
	CreatedAt time.Time       `json:"createdAt"`
	ClientID  string          `json:"clientId"`
	HitCount  int             `json:"hitCount"`
}

// Status is a read-only summary of the cache for status surfaces.
type Status struct {
	Entries  int           `json:"entries"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttlMs"`
	Keywords int           `json:"indexedKeywords"`
	Hits     uint64        `json:"hits"`
	Misses   uint64        `json:"misses"`
}

// Cache is a TTL-bounded query cache with a keyword inverted index.
//
// Expiry is lazy: Lookup treats a stale entry as a miss but leaves it
// in storage, so only capacity eviction ever deletes. Cached and the
// semantic index can still see stale entries until they are evicted.
// This mirrors the accepted staleness/size trade-off of the design.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	index    map[string]map[string]struct{}
	ttl      time.Duration
	capacity int
	hits     uint64
	misses   uint64
	logger   *logrus.Logger

	now func() time.Time // overridable in tests
}

// New creates a cache holding at most capacity entries, each fresh for
// ttl after its store.
func New(ttl time.Duration, capacity int, logger *logrus.Logger) *Cache {
	return &Cache{
		entries:  make(map[string]*Entry),
		index:    make(map[string]map[string]struct{}),
		ttl:      ttl,
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
	}
}

// Normalize maps a raw query to its cache key. Queries that normalize
// identically share one entry.
func Normalize(query string) string {
	return strings.TrimSpace(strings.ToLower(query))
}

// Lookup returns a fresh entry for key, or a miss when the key is
// absent or the entry has outlived the TTL. Hit/miss counters are
// updated; the entry's own hit count is not (see Cached).
func (c *Cache) Lookup(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.CreatedAt) >= c.ttl {
		c.misses++
		return Entry{}, false
	}

	c.hits++
	return entry.clone(), true
}

// Cached returns the stored entry for key regardless of freshness and
// increments its hit count. Used by the explicit get-cached action.
func (c *Cache) Cached(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}

	entry.HitCount++
	return entry.clone(), true
}

// Peek returns the stored entry for key without touching any counter.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Store replaces any entry under key as a whole unit, indexes the
// entry under each of its keywords, and evicts the oldest entry when
// the capacity is exceeded.
func (c *Cache) Store(key, query string, results []models.Result, semantics semantic.Tag, clientID string) Entry {
	entry := &Entry{
		Key:       key,
		Query:     query,
		Results:   results,
		Semantics: semantics,
		CreatedAt: c.now(),
		ClientID:  clientID,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry

	for _, kw := range semantics.Keywords {
		keys, ok := c.index[kw]
		if !ok {
			keys = make(map[string]struct{})
			c.index[kw] = keys
		}
		keys[key] = struct{}{}
	}

	if len(c.entries) > c.capacity {
		c.evictOldest()
	}

	return entry.clone()
}

// RelatedKeys returns the keys of live entries indexed under any of
// the given keywords. The index itself is append-only; keys whose
// entries were evicted are filtered here instead.
func (c *Cache) RelatedKeys(keywords []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	keys := make([]string, 0)

	for _, kw := range keywords {
		for key := range c.index[kw] {
			if seen[key] {
				continue
			}
			seen[key] = true
			if _, ok := c.entries[key]; ok {
				keys = append(keys, key)
			}
		}
	}

	return keys
}

// Status reports entry count, index size, and hit/miss totals.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Status{
		Entries:  len(c.entries),
		Capacity: c.capacity,
		TTL:      c.ttl,
		Keywords: len(c.index),
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

// HitRate returns the fraction of lookups served from cache.
func (c *Cache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// evictOldest removes the entry with the smallest CreatedAt.
// Caller holds c.mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.CreatedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.logger.WithField("key", oldestKey).Debug("Evicted oldest cache entry")
	}
}

func (e *Entry) clone() Entry {
	cp := *e
	cp.Results = make([]models.Result, len(e.Results))
	copy(cp.Results, e.Results)
	return cp
}
