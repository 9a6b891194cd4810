package types

import "time"

// CacheEntry pairs a cached value with the instant it was inserted.
// InsertedAt is written once by the cache on insert and never touched again.
type CacheEntry[V any] struct {
	Value      V
	InsertedAt time.Time
}
