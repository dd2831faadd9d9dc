package metrics

import "sync/atomic"

// CacheMetric counts hits and misses of one cache.
type CacheMetric struct {
	name   string
	hits   atomic.Int64
	misses atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (c *CacheMetric) Hit() {
	if enabled.Load() {
		c.hits.Add(1)
	}
}

// Miss records a cache miss.
func (c *CacheMetric) Miss() {
	if enabled.Load() {
		c.misses.Add(1)
	}
}

// Observe records a hit when ok is true and a miss otherwise.
func (c *CacheMetric) Observe(ok bool) {
	if ok {
		c.Hit()
	} else {
		c.Miss()
	}
}

// Stats returns a snapshot of the counters.
func (c *CacheMetric) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return CacheStats{Name: c.name, Hits: hits, Misses: misses, HitRatio: ratio}
}

// Reset zeroes the counters.
func (c *CacheMetric) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// CacheStats is a snapshot of a CacheMetric.
type CacheStats struct {
	Name     string  `json:"name"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// Cache metrics.
var (
	ListCacheMetrics     = newCacheMetric("list_cache")
	MetadataCacheMetrics = newCacheMetric("metadata_cache")
	SearchCacheMetrics   = newCacheMetric("search_cache")
)

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{ListCacheMetrics, MetadataCacheMetrics, SearchCacheMetrics}
}
