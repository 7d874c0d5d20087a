package conditions

import (
	"context"
	"time"
)

// Source abstracts one upstream feed (USGS, Open-Meteo, NWS, ...).
// Fetch performs exactly one attempt and returns a *FetchError on failure.
type Source interface {
	ID() SourceID
	Fetch(ctx context.Context, site Site) (SourceRecord, error)
}

// RefreshFunc produces a new record for a cache key.
type RefreshFunc func(ctx context.Context) (SourceRecord, error)

// Cache is the contract the TTL cache must satisfy.
type Cache interface {
	GetOrRefresh(ctx context.Context, key CacheKey, ttl time.Duration, refresh RefreshFunc) (SourceRecord, Status)
}
