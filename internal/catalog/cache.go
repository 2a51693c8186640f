// Package catalog caches the public eco catalog so the matcher and the
// control surface do not hammer the vendor on every tick.
package catalog

import (
	"context"
	"sync"
	"time"

	"ecosniper/internal/domain"
	applog "ecosniper/internal/log"
	"ecosniper/internal/ovhapi"
)

// Source is the vendor read surface the cache refreshes from.
type Source interface {
	Catalog(ctx context.Context) (*ovhapi.Catalog, error)
}

// Cache holds the last fetched catalog with a TTL. Reads refresh
// on demand when stale; a background refresher keeps it warm.
type Cache struct {
	mu        sync.Mutex
	source    Source
	plans     []ovhapi.CatalogPlan
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Cache{source: source, ttl: ttl, now: time.Now}
}

// Plans returns the cached catalog plans, refreshing first when the
// cache is stale or empty. A failed refresh with a warm-but-stale cache
// serves the stale data; with a cold cache it surfaces the error.
func (c *Cache) Plans(ctx context.Context) ([]ovhapi.CatalogPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.plans) == 0 || c.now().Sub(c.fetchedAt) >= c.ttl {
		if err := c.refreshLocked(ctx); err != nil {
			if len(c.plans) == 0 {
				return nil, domain.Transient("catalog fetch", err)
			}
			applog.Warn("catalog", "refresh failed, serving stale catalog", map[string]any{"error": err.Error()})
		}
	}
	out := make([]ovhapi.CatalogPlan, len(c.plans))
	copy(out, c.plans)
	return out, nil
}

// Plan returns one cached plan by code.
func (c *Cache) Plan(ctx context.Context, planCode string) (ovhapi.CatalogPlan, bool, error) {
	plans, err := c.Plans(ctx)
	if err != nil {
		return ovhapi.CatalogPlan{}, false, err
	}
	for _, p := range plans {
		if p.PlanCode == planCode {
			return p, true, nil
		}
	}
	return ovhapi.CatalogPlan{}, false, nil
}

// Refresh forces a fetch regardless of TTL.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	cat, err := c.source.Catalog(ctx)
	if err != nil {
		return err
	}
	c.plans = cat.Plans
	c.fetchedAt = c.now()
	applog.Info("catalog", "catalog refreshed", map[string]any{"plans": len(c.plans)})
	return nil
}

// Info reports cache freshness for the control surface.
func (c *Cache) Info() (count int, fetchedAt time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans), c.fetchedAt, c.ttl
}

// Run refreshes the cache on a long period until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	t := time.NewTicker(c.ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Refresh(ctx); err != nil {
				applog.Error("catalog", "scheduled refresh failed", err, nil)
			}
		}
	}
}
