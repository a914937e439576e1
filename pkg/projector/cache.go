package projector

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds the default builder's projector cache.
const defaultCacheSize = 500

// cacheEntry pairs a compiled projector with the wall-clock time its
// compile step took, kept for observability.
type cacheEntry struct {
	key       *cacheKey
	projector *Projector
	buildTime time.Duration
}

// cache is a bounded store of compiled projectors. The LRU is keyed by the
// fingerprint digest; entries with colliding digests chain on the full key
// so a collision never aliases distinct fingerprints.
type cache struct {
	mu  sync.Mutex
	lru *lru.Cache[uint64, []cacheEntry]
}

func newCache(size int) (*cache, error) {
	l, err := lru.New[uint64, []cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &cache{lru: l}, nil
}

// get returns the projector cached under an equal key, if any.
func (c *cache) get(key *cacheKey) (*Projector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, ok := c.lru.Get(key.hash)
	if !ok {
		return nil, false
	}
	for _, e := range entries {
		if e.key.Equal(key) {
			return e.projector, true
		}
	}
	return nil, false
}

// put stores p under key. An existing entry for an equal key is replaced:
// concurrent redundant compiles of equal fingerprints resolve to last
// write wins.
func (c *cache) put(key *cacheKey, p *Projector, buildTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, _ := c.lru.Get(key.hash)
	for i, e := range entries {
		if e.key.Equal(key) {
			entries[i] = cacheEntry{key: key, projector: p, buildTime: buildTime}
			c.lru.Add(key.hash, entries)
			return
		}
	}
	c.lru.Add(key.hash, append(entries, cacheEntry{key: key, projector: p, buildTime: buildTime}))
}

// len counts cached projectors across all collision chains.
func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, entries := range c.lru.Values() {
		n += len(entries)
	}
	return n
}
