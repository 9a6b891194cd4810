package shard

import "github.com/krisalay/caching-proxy/types"

/*
This file defines how data is actually stored inside a shard.

The store is a plain map. Locking lives one level up, in Shard.Mu, so that a
whole logical operation (look up + freshness check, or a full sweep scan)
happens inside one critical section.
*/

// Store is the interface used by a shard to store and retrieve cache entries.
type Store[K types.Key, V any] interface {

	// Get retrieves an entry by key.
	Get(K) (types.CacheEntry[V], bool)

	// Put inserts or replaces an entry.
	Put(K, types.CacheEntry[V])

	// Delete removes an entry.
	Delete(K)

	// Size returns how many entries are stored, fresh or not.
	Size() int

	// DeleteFunc removes every entry for which fn returns true
	// and reports how many were removed.
	DeleteFunc(fn func(K, types.CacheEntry[V]) bool) int
}

type mapStore[K types.Key, V any] struct {
	data map[K]types.CacheEntry[V]
}

func NewMapStore[K types.Key, V any]() *mapStore[K, V] {
	return &mapStore[K, V]{data: make(map[K]types.CacheEntry[V])}
}

func (s *mapStore[K, V]) Get(key K) (types.CacheEntry[V], bool) {
	ent, ok := s.data[key]
	return ent, ok
}

// Put replaces any prior entry entirely, including its insertion time.
func (s *mapStore[K, V]) Put(key K, ent types.CacheEntry[V]) {
	s.data[key] = ent
}

func (s *mapStore[K, V]) Delete(key K) {
	delete(s.data, key)
}

func (s *mapStore[K, V]) Size() int {
	return len(s.data)
}

// DeleteFunc is a full scan. Deleting during range is safe for Go maps.
func (s *mapStore[K, V]) DeleteFunc(fn func(K, types.CacheEntry[V]) bool) int {
	removed := 0
	for k, ent := range s.data {
		if fn(k, ent) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}
