package shard

import (
	"sync"

	"github.com/krisalay/caching-proxy/types"
)

/*
This file defines what a "Shard" is. A shard is a small, independent piece of the cache.

Each shard:
- Holds some portion of the data
- Has exactly one lock guarding that data

Every cache operation (get, insert, sweep) touches its shard's map only while
holding Mu, and never does I/O while holding it. A key always routes to the same
shard, so all operations on one key are serialized by one mutex.

With a single shard this is the classic "one map, one lock" cache.
*/
type Shard[K types.Key, V any] struct {

	// Store holds the actual key → entry data for this shard.
	// It is NOT safe for concurrent use on its own. Hold Mu.
	Store Store[K, V]

	// Mu gives one cache operation exclusive access to Store.
	Mu sync.Mutex
}

func NewShard[K types.Key, V any]() *Shard[K, V] {
	return &Shard[K, V]{
		Store: NewMapStore[K, V](),
	}
}
