package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Sharded is a TTL cache split across shards to keep lock contention low on
// hot read paths (bar windows keyed by symbol and timeframe).
type Sharded struct {
	shards [numShards]*shard
	ttl    time.Duration
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

type entry struct {
	value     any
	updatedAt time.Time
}

// NewSharded creates a cache whose entries expire after ttl. A zero ttl
// disables expiry.
func NewSharded(ttl time.Duration) *Sharded {
	c := &Sharded{ttl: ttl}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard{items: make(map[string]entry)}
	}
	return c
}

func (c *Sharded) getShard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a value under key.
func (c *Sharded) Set(key string, value any) {
	s := c.getShard(key)
	s.mu.Lock()
	s.items[key] = entry{value: value, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Get retrieves a live value; expired entries read as misses and are
// removed lazily.
func (c *Sharded) Get(key string) (any, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.updatedAt) > c.ttl {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.updatedAt.Equal(e.updatedAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Delete removes a key.
func (c *Sharded) Delete(key string) {
	s := c.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns total items across all shards, including not-yet-evicted
// expired entries.
func (c *Sharded) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup removes expired entries eagerly and reports how many went away.
func (c *Sharded) Cleanup() int {
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	cutoff := time.Now().Add(-c.ttl)
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.updatedAt.Before(cutoff) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Stats summarizes cache usage.
type Stats struct {
	TotalItems int           `json:"total_items"`
	OldestAge  time.Duration `json:"oldest_age"`
}

// Stats returns cache statistics.
func (c *Sharded) Stats() Stats {
	stats := Stats{}
	var oldest time.Time
	for _, s := range c.shards {
		s.mu.RLock()
		stats.TotalItems += len(s.items)
		for _, e := range s.items {
			if oldest.IsZero() || e.updatedAt.Before(oldest) {
				oldest = e.updatedAt
			}
		}
		s.mu.RUnlock()
	}
	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	return stats
}
