package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/river-hud/internal/conditions"
	"github.com/i474232898/river-hud/internal/observability"
)

// Lookup results recorded in metrics.
const (
	resultFresh       = "fresh"
	resultRefreshed   = "refreshed"
	resultStale       = "stale"
	resultUnavailable = "unavailable"
)

type entry struct {
	record    conditions.SourceRecord
	expiresAt time.Time
}

type lookup struct {
	record conditions.SourceRecord
	status conditions.Status
	result string
}

// Cache is a concurrency-safe in-memory TTL cache of source records.
// The mutex guards only the entry map; refreshes run outside it, with at
// most one in flight per key.
type Cache struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[conditions.CacheKey]entry

	flights singleflight.Group
}

// NewCache creates an empty Cache.
func NewCache(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	return &Cache{
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		entries: make(map[conditions.CacheKey]entry),
	}
}

// GetOrRefresh returns the cached record for key while it is younger than
// ttl. Otherwise it runs refresh; on failure the previous record is served
// as stale, or an unavailable record if there never was one.
//
// Concurrent callers for the same key share one refresh. The refresh is
// detached from ctx: a caller whose ctx ends first gets the best current
// answer while the refresh still completes and populates the cache.
func (c *Cache) GetOrRefresh(ctx context.Context, key conditions.CacheKey, ttl time.Duration, refresh conditions.RefreshFunc) (conditions.SourceRecord, conditions.Status) {
	if rec, ok := c.fresh(key); ok {
		c.observe(key, resultFresh)
		return rec, conditions.StatusFresh
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key.String(), func() (any, error) {
		// Another flight may have filled the entry since the check above.
		if rec, ok := c.fresh(key); ok {
			return lookup{record: rec, status: conditions.StatusFresh, result: resultFresh}, nil
		}

		rec, err := refresh(flightCtx)
		if err != nil {
			c.logger.Debug("cache refresh failed", "key", key.String(), "error", err)
			return c.fallback(key), nil
		}

		now := c.clock.Now()
		rec.Source = key.Source
		rec.FetchedAt = now
		rec.Status = conditions.StatusFresh

		c.mu.Lock()
		c.entries[key] = entry{record: rec, expiresAt: now.Add(ttl)}
		c.mu.Unlock()

		return lookup{record: rec, status: conditions.StatusFresh, result: resultRefreshed}, nil
	})

	var l lookup
	select {
	case res := <-ch:
		l = res.Val.(lookup)
	case <-ctx.Done():
		l = c.fallback(key)
	}
	c.observe(key, l.result)
	return l.record, l.status
}

func (c *Cache) fresh(key conditions.CacheKey) (conditions.SourceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return conditions.SourceRecord{}, false
	}
	return e.record, true
}

// fallback serves the prior record as stale without touching its payload
// or fetch time.
func (c *Cache) fallback(key conditions.CacheKey) lookup {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if !ok {
		return lookup{
			record: conditions.UnavailableRecord(key.Source),
			status: conditions.StatusUnavailable,
			result: resultUnavailable,
		}
	}

	rec := e.record
	rec.Status = conditions.StatusStale
	return lookup{record: rec, status: conditions.StatusStale, result: resultStale}
}

func (c *Cache) observe(key conditions.CacheKey, result string) {
	c.metrics.CacheLookups.WithLabelValues(string(key.Source), result).Inc()
}
