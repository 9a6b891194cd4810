package cache

import (
	"bytes"
	"time"

	"github.com/krisalay/caching-proxy/engine"
	"github.com/krisalay/caching-proxy/expiration"
	"github.com/krisalay/caching-proxy/shard"
	"github.com/krisalay/caching-proxy/types"
)

/*
ShardedCache is the main cache implementation: a keyed store of
(value, insertion time) pairs with one TTL for every entry.

This struct is the orchestrator that connects:
- shards (storage + locking)
- the engine (expiration, clock, metrics)

It never does I/O. Whatever produces the values (an origin fetch, a database
call) runs outside of it, so a slow producer never holds a shard lock.
*/
type ShardedCache[K types.Key, V any] struct {
	// shards are the actual storage units. Each shard has one map and one lock.
	shards []*shard.Shard[K, V]

	// engine contains the "rules" of the cache: TTL, clock, metrics.
	engine *engine.CacheEngine

	// selector decides which shard a key should go to.
	selector shard.Selector[K, V]

	// clone copies a value on its way in and out, so callers never share
	// memory with a stored entry.
	clone func(V) V
}

// Options configures a ShardedCache. Only TTL is required.
type Options struct {
	// TTL is the lifetime of every entry, counted from its insertion.
	TTL time.Duration

	// Shards is the number of independent map+lock pairs. Values below 1 mean 1.
	Shards int

	// Metrics receives hit/miss/store/expire events. Nil means no metrics.
	Metrics types.Metrics

	// Clock overrides time.Now.
	Clock func() time.Time
}

// cloneFunc copies []byte values with bytes.Clone. Other value types are
// stored and returned as they are.
func cloneFunc[V any]() func(V) V {
	var zero V
	if _, ok := any(zero).([]byte); ok {
		return func(v V) V {
			return any(bytes.Clone(any(v).([]byte))).(V)
		}
	}
	return func(v V) V { return v }
}

func New[K types.Key, V any](opts Options) *ShardedCache[K, V] {
	n := opts.Shards
	if n < 1 {
		n = 1
	}

	s := make([]*shard.Shard[K, V], n)
	for i := range s {
		s[i] = shard.NewShard[K, V]()
	}

	return &ShardedCache[K, V]{
		shards:   s,
		engine:   engine.NewCacheEngine(expiration.NewExpireAfterWrite(opts.TTL), opts.Metrics, opts.Clock),
		selector: shard.Blake3Selector[K, V]{},
		clone:    cloneFunc[V](),
	}
}

/*
Get returns a copy of the value stored under key if it is still fresh.
Writing into the returned value never changes what later calls see.

A stale entry is reported as absent but left in place: removing it is the
sweeper's job, and Get stays a pure read.
*/
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	sh := c.selector.Select(key, c.shards)
	now := c.engine.Now()

	sh.Mu.Lock()
	ent, ok := sh.Store.Get(key)
	sh.Mu.Unlock()

	if !ok || c.engine.IsExpired(ent.InsertedAt, now) {
		c.engine.Metrics.Miss()
		var zero V
		return zero, false
	}

	c.engine.Metrics.Hit()
	return c.clone(ent.Value), true
}

/*
Insert stores a copy of value under key with InsertedAt = now.
Any previous entry for key (fresh or stale) is replaced entirely.
*/
func (c *ShardedCache[K, V]) Insert(key K, value V) {
	sh := c.selector.Select(key, c.shards)
	ent := types.CacheEntry[V]{
		Value:      c.clone(value),
		InsertedAt: c.engine.Now(),
	}

	sh.Mu.Lock()
	sh.Store.Put(key, ent)
	sh.Mu.Unlock()

	c.engine.Metrics.Store()
}

/*
RemoveExpired deletes every entry that is stale at now and returns how many
were removed. Shards are scanned one after the other, each under its own lock,
so inserts into other shards are never blocked by the whole sweep.

Calling it again with nothing new to expire removes nothing and returns 0.
*/
func (c *ShardedCache[K, V]) RemoveExpired(now time.Time) int {
	removed := 0
	for _, sh := range c.shards {
		sh.Mu.Lock()
		removed += sh.Store.DeleteFunc(func(_ K, ent types.CacheEntry[V]) bool {
			return c.engine.IsExpired(ent.InsertedAt, now)
		})
		sh.Mu.Unlock()
	}

	if removed > 0 {
		c.engine.Metrics.Expire(removed)
	}
	return removed
}

// Len returns the number of stored entries, including stale ones not yet swept.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, sh := range c.shards {
		sh.Mu.Lock()
		total += sh.Store.Size()
		sh.Mu.Unlock()
	}
	return total
}

// TTL returns the lifetime applied to every entry.
func (c *ShardedCache[K, V]) TTL() time.Duration {
	return c.engine.Expiration.TTL()
}

// Now returns the cache's clock reading. The sweeper uses it so that sweeps and
// inserts agree on what time it is.
func (c *ShardedCache[K, V]) Now() time.Time {
	return c.engine.Now()
}
