package simcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vitalhub/vitals/internal/api"
)

// Cache memoizes simulation results per snapshot. Keys embed the snapshot
// version, so entries built against a superseded snapshot can never be
// served after a rebuild; stale keys simply age out of the LRU.
type Cache struct {
	lru *lru.Cache[string, *api.CounterfactualResult]
}

// New creates a cache holding up to size results.
func New(size int) (*Cache, error) {
	l, err := lru.New[string, *api.CounterfactualResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Key derives the cache key for a query against a snapshot version.
func Key(version uint64, d api.SimulationDeltas) string {
	return fmt.Sprintf("%d|%g|%g|%g", version, d.SleepHours, d.Steps, d.CaloriesIn)
}

// Get returns a cached result, or nil on miss.
func (c *Cache) Get(key string) *api.CounterfactualResult {
	if res, ok := c.lru.Get(key); ok {
		return res
	}
	return nil
}

// Put stores a result.
func (c *Cache) Put(key string, res *api.CounterfactualResult) {
	c.lru.Add(key, res)
}
