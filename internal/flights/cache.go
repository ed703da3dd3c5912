package flights

import (
	"sync"
	"time"

	"travelfolio/internal/types"
)

// resultCache keeps recent search results so manual alert checks and UI
// searches for the same route within a short window reuse one fetch.
type cacheItem struct {
	result     *types.SearchResult
	expiration time.Time
}

type resultCache struct {
	mu    sync.Mutex
	items map[string]*cacheItem
	ttl   time.Duration
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &resultCache{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
	}
}

func (c *resultCache) get(key string) (*types.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && time.Now().Before(item.expiration) {
		return cloneResult(item.result), true
	}
	return nil, false
}

func (c *resultCache) set(key string, result *types.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		result:     cloneResult(result),
		expiration: time.Now().Add(c.ttl),
	}
}

// cloneResult copies a search result. Callers annotate results in place
// (coords, nil fixes), so the cached entry must never be shared with them.
func cloneResult(r *types.SearchResult) *types.SearchResult {
	cp := *r
	if r.Flights != nil {
		cp.Flights = append([]types.Flight(nil), r.Flights...)
	}
	if r.Coords != nil {
		cp.Coords = make(map[string]types.Coord, len(r.Coords))
		for k, v := range r.Coords {
			cp.Coords[k] = v
		}
	}
	return &cp
}
