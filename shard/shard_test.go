package shard_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/caching-proxy/shard"
	"github.com/krisalay/caching-proxy/types"
)

func TestMapStoreOverwriteAndDeleteFunc(t *testing.T) {
	s := shard.NewMapStore[types.CacheKey, []byte]()
	k := types.NewCacheKey("/x", "")
	t0 := time.Unix(100, 0)

	s.Put(k, types.CacheEntry[[]byte]{Value: []byte("a"), InsertedAt: t0})
	s.Put(k, types.CacheEntry[[]byte]{Value: []byte("b"), InsertedAt: t0.Add(time.Second)})

	ent, ok := s.Get(k)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), ent.Value)
	assert.Equal(t, t0.Add(time.Second), ent.InsertedAt)
	assert.Equal(t, 1, s.Size())

	s.Put(types.NewCacheKey("/y", ""), types.CacheEntry[[]byte]{InsertedAt: t0})
	removed := s.DeleteFunc(func(_ types.CacheKey, e types.CacheEntry[[]byte]) bool {
		return e.InsertedAt.Equal(t0)
	})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Size())

	s.Delete(k)
	assert.Equal(t, 0, s.Size())
}

func TestBlake3SelectorIsDeterministicAndSpreads(t *testing.T) {
	shards := make([]*shard.Shard[types.CacheKey, int], 8)
	for i := range shards {
		shards[i] = shard.NewShard[types.CacheKey, int]()
	}
	sel := shard.Blake3Selector[types.CacheKey, int]{}

	used := make(map[*shard.Shard[types.CacheKey, int]]bool)
	for i := 0; i < 256; i++ {
		k := types.NewCacheKey(fmt.Sprintf("/api/v1/item/%d", i), "")
		first := sel.Select(k, shards)
		assert.Same(t, first, sel.Select(k, shards))
		used[first] = true
	}
	assert.Len(t, used, len(shards), "256 keys should reach every one of 8 shards")
}

func TestBlake3SelectorSingleShard(t *testing.T) {
	only := shard.NewShard[types.CacheKey, int]()
	sel := shard.Blake3Selector[types.CacheKey, int]{}
	assert.Same(t, only, sel.Select(types.NewCacheKey("/anything", "q=1"), []*shard.Shard[types.CacheKey, int]{only}))
}
