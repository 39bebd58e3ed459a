package airquality

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves raw station records for a city.
// It returns an empty slice when the provider reports no stations.
type Fetcher interface {
	Fetch(ctx context.Context, city string) ([]RawRecord, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, city string) ([]RawRecord, error)

// Fetch calls f(ctx, city).
func (f FetchFunc) Fetch(ctx context.Context, city string) ([]RawRecord, error) {
	return f(ctx, city)
}

// CacheObserver receives cache hit and miss notifications.
type CacheObserver interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// ResultCache memoizes extracted station lists per city.
// Keys are used verbatim. Entries never expire; Put overwrites.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string][]Station

	group        singleflight.Group
	observer     CacheObserver
	fetchTimeout time.Duration
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		entries: make(map[string][]Station),
	}
}

// WithObserver attaches an observer for hit/miss accounting.
func (c *ResultCache) WithObserver(o CacheObserver) *ResultCache {
	c.observer = o
	return c
}

// WithFetchTimeout bounds each shared fetch. Zero leaves fetches unbounded
// apart from whatever the Fetcher enforces itself.
func (c *ResultCache) WithFetchTimeout(d time.Duration) *ResultCache {
	c.fetchTimeout = d
	return c
}

// Get returns the cached stations for city and whether an entry exists.
// An entry may hold an empty list.
func (c *ResultCache) Get(city string) ([]Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stations, ok := c.entries[city]
	return stations, ok
}

// Put stores stations under city, replacing any existing entry.
func (c *ResultCache) Put(city string, stations []Station) {
	if stations == nil {
		stations = []Station{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[city] = stations
}

// Contains reports whether city has an entry.
func (c *ResultCache) Contains(city string) bool {
	_, ok := c.Get(city)
	return ok
}

// Len returns the number of cached cities.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cities returns the cached city keys in sorted order.
func (c *ResultCache) Cities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cities := make([]string, 0, len(c.entries))
	for city := range c.entries {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// GetOrFetch returns the cached stations for city, fetching and caching them
// on a miss. A failed fetch is returned wrapped in ErrFetch and is not cached.
// Concurrent misses for the same city share a single fetch.
func (c *ResultCache) GetOrFetch(ctx context.Context, city string, fetcher Fetcher) ([]Station, error) {
	if stations, ok := c.Get(city); ok {
		c.recordHit()
		return stations, nil
	}
	c.recordMiss()

	return c.shared(ctx, city, func(fetchCtx context.Context) ([]Station, error) {
		// Another caller may have filled the entry while we waited.
		if stations, ok := c.Get(city); ok {
			return stations, nil
		}
		return c.fetchAndStore(fetchCtx, city, fetcher)
	})
}

// Refresh fetches city unconditionally and overwrites its entry on success.
func (c *ResultCache) Refresh(ctx context.Context, city string, fetcher Fetcher) ([]Station, error) {
	return c.shared(ctx, city, func(fetchCtx context.Context) ([]Station, error) {
		return c.fetchAndStore(fetchCtx, city, fetcher)
	})
}

// shared runs fn once per city across concurrent callers. fn runs detached
// from any single caller's cancellation; each caller stops waiting when its
// own ctx is done while the fetch carries on for the others.
func (c *ResultCache) shared(ctx context.Context, city string, fn func(context.Context) ([]Station, error)) ([]Station, error) {
	ch := c.group.DoChan(city, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if c.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.fetchTimeout)
			defer cancel()
		}
		return fn(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Station), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w for %q: %w", ErrFetch, city, ctx.Err())
	}
}

func (c *ResultCache) fetchAndStore(ctx context.Context, city string, fetcher Fetcher) ([]Station, error) {
	records, err := fetcher.Fetch(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("%w for %q: %w", ErrFetch, city, err)
	}

	stations := ExtractStations(records)
	c.Put(city, stations)
	return stations, nil
}

func (c *ResultCache) recordHit() {
	if c.observer != nil {
		c.observer.RecordCacheHit(cacheProviderName, cacheOperation)
	}
}

func (c *ResultCache) recordMiss() {
	if c.observer != nil {
		c.observer.RecordCacheMiss(cacheProviderName, cacheOperation)
	}
}

const (
	cacheProviderName = "airquality"
	cacheOperation    = "stations"
)
