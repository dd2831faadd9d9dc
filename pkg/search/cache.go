package search

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const (
	DefaultCacheSize = 64
	DefaultCacheTTL  = time.Minute
)

// resultCache memoizes evaluated queries per snapshot generation. When it
// reaches capacity it is flushed rather than evicted item by item.
type resultCache struct {
	items    *gocache.Cache
	capacity int
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{
		items:    gocache.New(ttl, 2*ttl),
		capacity: capacity,
	}
}

func cacheKey(gen uint64, mode model.SearchMode, query string) string {
	return strconv.FormatUint(gen, 10) + "|" + mode.String() + "|" + query
}

func (c *resultCache) get(key string) ([]model.Result, bool) {
	v, ok := c.items.Get(key)
	metrics.SearchCacheMetrics.Observe(ok)
	if !ok {
		return nil, false
	}
	return cloneResults(v.([]model.Result)), true
}

func (c *resultCache) put(key string, results []model.Result) {
	if c.items.ItemCount() >= c.capacity {
		c.items.Flush()
	}
	c.items.SetDefault(key, cloneResults(results))
}

func (c *resultCache) flush() {
	c.items.Flush()
}

func (c *resultCache) len() int {
	return c.items.ItemCount()
}

func cloneResults(in []model.Result) []model.Result {
	if in == nil {
		return nil
	}
	out := make([]model.Result, len(in))
	for i, r := range in {
		if r.Entry != nil {
			e := *r.Entry
			r.Entry = &e
		}
		out[i] = r
	}
	return out
}
