// Package cache implements the Switch-In Cache (C4): a bounded, in-process
// associative cache from a text fingerprint to the last analysis result for
// that text, so switching back to a previously-seen message (e.g. the user
// re-opens a draft) doesn't force a fresh remote round trip.
package cache

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/unsaid-inc/tonecoach-core/model"
)

// DefaultCapacity is the cache's fixed capacity per §3.
const DefaultCapacity = 64

// entry is a cached result plus its insertion order, for oldest-first eviction.
type entry struct {
	fingerprint uint64
	result      model.AnalysisResult
	seq         uint64
}

// Cache is a fixed-capacity, oldest-first-eviction cache keyed by a 64-bit
// FNV-1a fingerprint of the trimmed input text. Fingerprint collisions are
// accepted — per §4.4 a stale hit only costs a slightly off-suggestion.
type Cache struct {
	capacity int

	mu      sync.Mutex
	order   []uint64 // fingerprints in insertion order, oldest first
	entries map[uint64]entry
	nextSeq uint64
}

// New returns an empty cache with capacity (DefaultCapacity if capacity <= 0).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[uint64]entry, capacity),
	}
}

// Fingerprint returns the 64-bit FNV-1a hash of the trimmed input text.
func Fingerprint(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.TrimSpace(text)))
	return h.Sum64()
}

// Lookup returns the cached result for text, if present.
func (c *Cache) Lookup(text string) (model.AnalysisResult, bool) {
	fp := Fingerprint(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fp]
	if !ok {
		return model.AnalysisResult{}, false
	}
	return e.result, true
}

// Insert records result under text's fingerprint, evicting the oldest entry
// if the cache is at capacity.
func (c *Cache) Insert(text string, result model.AnalysisResult) {
	fp := Fingerprint(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; !exists {
		c.order = append(c.order, fp)
	}
	c.nextSeq++
	c.entries[fp] = entry{fingerprint: fp, result: result, seq: c.nextSeq}

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Prewarm forces initialization of any lazy tables by inserting and then
// removing a sentinel entry, per §4.4.
func (c *Cache) Prewarm() {
	const sentinelText = "\x00tonecoach-prewarm-sentinel\x00"
	c.Insert(sentinelText, model.AnalysisResult{})
	fp := Fingerprint(sentinelText)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fp)
	for i, v := range c.order {
		if v == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
