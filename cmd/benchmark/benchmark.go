package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	cache "github.com/krisalay/caching-proxy"
	"github.com/krisalay/caching-proxy/sweep"
	"github.com/krisalay/caching-proxy/types"
)

// ================= BENCHMARK =================

func main() {
	// ---------------- Cache Config ----------------
	const (
		shards      = 8
		ttl         = 2 * time.Second
		preloadKeys = 100000
		goroutines  = 200
		opsPerG     = 5000
		writeEvery  = 20 // one insert per 20 ops, the rest are lookups
	)

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", shards)
	fmt.Println("TTL          :", ttl)
	fmt.Println("Preload Keys :", preloadKeys)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("---------------------------------")

	c := cache.New[types.CacheKey, []byte](cache.Options{TTL: ttl, Shards: shards})

	keys := make([]types.CacheKey, preloadKeys)
	for i := range keys {
		keys[i] = types.NewCacheKey(fmt.Sprintf("/api/block/%d", i), "format=json")
	}
	body := []byte(`{"height":1,"tx_count":2}`)

	// ---------------- Preload Cache ----------------
	fmt.Println("Preloading cache...")
	for _, k := range keys {
		c.Insert(k, body)
	}
	fmt.Println("Preload complete.")

	// The sweeper runs during the load test, as it does in the proxy.
	sw := sweep.New(c, ttl/4)
	sw.Start(context.Background())
	defer sw.Stop()

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	var hits, misses sync.Map
	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(id), 42))
			h, m := 0, 0
			for j := 0; j < opsPerG; j++ {
				k := keys[r.IntN(len(keys))]
				if j%writeEvery == 0 {
					c.Insert(k, body)
					continue
				}
				if _, ok := c.Get(k); ok {
					h++
				} else {
					m++
				}
			}
			hits.Store(id, h)
			misses.Store(id, m)
		}(g)
	}
	wg.Wait()

	duration := time.Since(start)

	totalOps := goroutines * opsPerG
	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Hits / Misses    : %d / %d\n", sum(&hits), sum(&misses))
	fmt.Printf("Entries Left     : %d\n", c.Len())
	fmt.Println("=========================================")

	// ---------------- Expiry ----------------
	time.Sleep(ttl + ttl/2)
	fmt.Printf("Entries after %v: %d (sweeper reclaimed stale entries)\n", ttl+ttl/2, c.Len())
}

func sum(m *sync.Map) int {
	total := 0
	m.Range(func(_, v any) bool {
		total += v.(int)
		return true
	})
	return total
}
