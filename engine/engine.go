package engine

import (
	"time"

	"github.com/krisalay/caching-proxy/expiration"
	"github.com/krisalay/caching-proxy/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.

It decides:
- When data is expired
- What time it is
- How metrics are recorded

It does NOT:
- Store data
- Handle sharding
- Handle locking
*/
type CacheEngine struct {

	// Expiration controls when a cache entry should be considered "too old".
	// It is never nil: a cache without a TTL is not this cache.
	Expiration expiration.Strategy

	// Metrics is how we keep track of what the cache is doing.
	Metrics types.Metrics

	// Clock returns the current instant. Tests replace it to move time by hand.
	Clock func() time.Time
}

/*
NewCacheEngine creates a CacheEngine.

A nil metrics becomes NoopMetrics and a nil clock becomes time.Now,
so the rest of the code never checks for nil.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	metrics types.Metrics,
	clock func() time.Time,
) *CacheEngine {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if clock == nil {
		clock = time.Now
	}

	return &CacheEngine{
		Expiration: exp,
		Metrics:    metrics,
		Clock:      clock,
	}
}

// Now returns the engine's notion of the current instant.
func (e *CacheEngine) Now() time.Time {
	return e.Clock()
}

// IsExpired checks whether an entry is stale at now.
func (e *CacheEngine) IsExpired(insertedAt, now time.Time) bool {
	return e.Expiration.IsExpired(insertedAt, now)
}
