package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// QueryCache is an LRU cache with TTL for retrieval results. Entries
// are invalidated wholesale when the index generation changes.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	results   []domain.RetrievedChunk
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, opts port.RetrieveOptions) string {
	data := []byte(query)
	data = append(data, byte(opts.TopK>>8), byte(opts.TopK))
	if opts.UseGraph {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	data = append(data, byte(opts.MaxHops>>8), byte(opts.MaxHops))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(query string, opts port.RetrieveOptions) ([]domain.RetrievedChunk, bool) {
	c.mu.RLock()
	key := cacheKey(query, opts)
	entry, exists := c.entries[key]
	currentGen := c.indexGen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	if entry.indexGen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.results, true
}

func (c *QueryCache) Put(query string, opts port.RetrieveOptions, results []domain.RetrievedChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, opts)

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{
			results:   results,
			timestamp: time.Now(),
			indexGen:  c.indexGen,
		}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}
	c.order = append(c.order, key)
}

// Invalidate drops all entries. Call after a reindex so stale results
// never survive an index generation change.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

// SetGeneration records the index generation the next lookups run
// against. A change from the last recorded generation drops every
// cached entry.
func (c *QueryCache) SetGeneration(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.indexGen {
		return
	}
	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen = gen
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedRetriever wraps a retriever with the query cache.
type CachedRetriever struct {
	retriever  port.Retriever
	cache      *QueryCache
	generation func() (uint64, error)
}

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
	}
}

// TrackGeneration wires a generation source, normally the index
// store's Generation method, so cached results of a superseded index
// run are never served.
func (r *CachedRetriever) TrackGeneration(source func() (uint64, error)) {
	r.generation = source
}

func (r *CachedRetriever) Retrieve(query string, opts port.RetrieveOptions) ([]domain.RetrievedChunk, error) {
	if r.generation != nil {
		// A failing source is not fatal here; the wrapped retriever
		// will surface any real store problem on the miss path.
		if gen, err := r.generation(); err == nil {
			r.cache.SetGeneration(gen)
		}
	}

	if results, hit := r.cache.Get(query, opts); hit {
		return results, nil
	}

	results, err := r.retriever.Retrieve(query, opts)
	if err != nil {
		return nil, err
	}

	r.cache.Put(query, opts, results)

	return results, nil
}
