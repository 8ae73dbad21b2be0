package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"realtors/models"
	"realtors/search"
	"realtors/storage"
)

// Lister is the read side of PropertyService the catalog needs.
type Lister interface {
	ListAll(ctx context.Context) ([]models.Property, error)
}

// Catalog holds the publicly visible records in memory and answers searches
// against them. It reloads lazily after Invalidate.
type Catalog struct {
	lister   Lister
	cache    storage.SearchCache
	cacheTTL time.Duration

	mu       sync.RWMutex
	records  []models.Property
	index    map[string]int
	version  int64
	stale    bool
	gen      uint64
	loadedAt time.Time
}

func NewCatalog(lister Lister) *Catalog {
	return &Catalog{lister: lister, stale: true}
}

// WithCache caches search results for ttl. Results are keyed by snapshot, so
// a refresh never serves results from an older one.
func (c *Catalog) WithCache(cache storage.SearchCache, ttl time.Duration) *Catalog {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.gen++
	c.mu.Unlock()
}

// Refresh reloads the snapshot from the store. An Invalidate that lands while
// the store is being read leaves the catalog stale.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	all, err := c.lister.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	visible := make([]models.Property, 0, len(all))
	index := make(map[string]int, len(all))
	for _, p := range all {
		if p.Pending() {
			continue
		}
		index[p.ID] = len(visible)
		visible = append(visible, p)
	}

	now := time.Now()
	c.mu.Lock()
	c.records = visible
	c.index = index
	c.version = now.UnixNano()
	c.loadedAt = now
	if c.gen == gen {
		c.stale = false
	}
	c.mu.Unlock()

	log.Printf("Catalog refreshed: %d public of %d properties", len(visible), len(all))
	return nil
}

// All returns the public records.
func (c *Catalog) All(ctx context.Context) ([]models.Property, error) {
	records, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]models.Property(nil), records...), nil
}

// Search returns the public records matching criteria.
func (c *Catalog) Search(ctx context.Context, criteria models.Criteria) ([]models.Property, error) {
	records, version, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if c.cache == nil || !search.Active(criteria) {
		return search.Filter(records, criteria), nil
	}

	key := storage.GenerateQueryCacheKey(fmt.Sprintf("search:%d", version), criteriaParams(criteria))
	var ids []string
	if hit, err := c.cache.GetCached(ctx, key, &ids); err != nil {
		log.Printf("Warning: search cache read failed: %v", err)
	} else if hit {
		if out, ok := c.lookup(version, ids); ok {
			return out, nil
		}
	}

	out := search.Filter(records, criteria)
	ids = make([]string, len(out))
	for i, p := range out {
		ids[i] = p.ID
	}
	if err := c.cache.SetCached(ctx, key, ids, c.cacheTTL); err != nil {
		log.Printf("Warning: search cache write failed: %v", err)
	}
	return out, nil
}

// LoadedAt is when the current snapshot was read from the store.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Catalog) snapshot(ctx context.Context) ([]models.Property, int64, error) {
	c.mu.RLock()
	stale := c.stale
	c.mu.RUnlock()

	if stale {
		if err := c.Refresh(ctx); err != nil {
			return nil, 0, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records, c.version, nil
}

// lookup resolves cached ids against the snapshot they were computed from.
func (c *Catalog) lookup(version int64, ids []string) ([]models.Property, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if version != c.version {
		return nil, false
	}
	out := make([]models.Property, 0, len(ids))
	for _, id := range ids {
		i, ok := c.index[id]
		if !ok {
			return nil, false
		}
		out = append(out, c.records[i])
	}
	return out, true
}

func criteriaParams(c models.Criteria) map[string]string {
	params := map[string]string{
		"listingType":  string(c.ListingType),
		"location":     strings.ToLower(strings.TrimSpace(c.Location)),
		"propertyType": string(c.PropertyType),
		"zone":         c.Zone,
		"beds":         strconv.Itoa(c.Beds),
		"baths":        strconv.Itoa(c.Baths),
		"minPrice":     strconv.FormatFloat(c.MinPrice, 'f', -1, 64),
		"maxPrice":     strconv.FormatFloat(c.MaxPrice, 'f', -1, 64),
		"minArea":      strconv.FormatFloat(c.MinArea, 'f', -1, 64),
		"maxArea":      strconv.FormatFloat(c.MaxArea, 'f', -1, 64),
	}
	zones := append([]string(nil), c.Zones...)
	sort.Strings(zones)
	params["zones"] = strings.Join(zones, ",")
	return params
}
