package shard

import (
	"encoding/binary"

	"github.com/krisalay/caching-proxy/types"
	"lukechampine.com/blake3"
)

/*
This file decides HOW a cache key is assigned to a shard.
If every request went to the same shard, that shard would become a bottleneck.
*/

// Selector decides which shard should handle a given key.
// It must be deterministic: the same key always maps to the same shard.
type Selector[K types.Key, V any] interface {
	Select(K, []*Shard[K, V]) *Shard[K, V]
}

/*
Blake3Selector routes a key by the first 8 bytes of the blake3 digest of its
String form. Request paths tend to share long prefixes ("/api/v1/..."), and a
full-width digest spreads them evenly where a short hash would cluster.
*/
type Blake3Selector[K types.Key, V any] struct{}

func (Blake3Selector[K, V]) Select(key K, shards []*Shard[K, V]) *Shard[K, V] {
	if len(shards) == 1 {
		return shards[0]
	}
	sum := blake3.Sum256([]byte(key.String()))
	idx := binary.LittleEndian.Uint64(sum[:8]) % uint64(len(shards))
	return shards[idx]
}
