// Package cache holds computed risk reports keyed by rounded coordinate.
package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 100
)

// ResultCache is a thread-safe TTL cache of risk reports. When full, the
// entry with the oldest insertion time is evicted; reads do not refresh
// an entry's age.
type ResultCache struct {
	clock    clockwork.Clock
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]entry
	seq     uint64
}

type entry struct {
	report   domain.RiskReport
	cachedAt time.Time
	seq      uint64 // insertion order, breaks cachedAt ties
}

// New creates a cache. Non-positive ttl or capacity fall back to the defaults.
func New(clock clockwork.Clock, ttl time.Duration, capacity int) *ResultCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ResultCache{
		clock:    clock,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]entry),
	}
}

// Get returns the fresh report stored for coord. A stale entry is removed
// and reported as a miss.
func (c *ResultCache) Get(coord domain.Coordinate) (domain.RiskReport, bool) {
	key := coord.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.RiskReport{}, false
	}
	if c.clock.Since(e.cachedAt) >= c.ttl {
		delete(c.entries, key)
		return domain.RiskReport{}, false
	}
	return cloneReport(e.report), true
}

// Put stores report under coord, replacing any previous entry. It reports
// whether another entry had to be evicted to stay within capacity.
func (c *ResultCache) Put(coord domain.Coordinate, report domain.RiskReport) bool {
	key := coord.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = entry{report: cloneReport(report), cachedAt: c.clock.Now(), seq: c.seq}
	if len(c.entries) <= c.capacity {
		return false
	}
	c.evictOldest()
	return true
}

// Len returns the number of stored entries, including stale ones not yet read.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) evictOldest() {
	var (
		oldestKey string
		oldest    entry
		found     bool
	)
	for k, e := range c.entries {
		if !found || older(e, oldest) {
			oldestKey, oldest, found = k, e, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

func older(a, b entry) bool {
	if !a.cachedAt.Equal(b.cachedAt) {
		return a.cachedAt.Before(b.cachedAt)
	}
	return a.seq < b.seq
}

// cloneReport copies the sightings so stored entries never share a backing
// array with callers.
func cloneReport(r domain.RiskReport) domain.RiskReport {
	r.Sightings = slices.Clone(r.Sightings)
	return r
}
