package api

import (
	"time"

	"github.com/krisalay/caching-proxy/types"
)

/*
Cache defines the PUBLIC API of the TTL cache.
This is a contract that guarantees certain behaviors, without exposing internals.
Sharding, locking and the clock are hidden behind this interface.

Every method is safe for concurrent use, and each one is a single exclusive
operation on the underlying storage.
*/
type Cache[K types.Key, V any] interface {

	/*
		Get retrieves the value associated with the given key.

		BEHAVIOR:
		-------------------
		1. If the key exists and is fresh (now - inserted_at < TTL):
		   - Return a copy of the value, true
		   - Mutating the returned value never changes the stored entry

		2. If the key does NOT exist, or exists but is stale:
		   - Return the zero value, false
		   - A stale entry stays in storage until the next sweep
	*/
	Get(key K) (V, bool)

	/*
		Insert stores a key-value pair, stamped with the current time.

		BEHAVIOR:
		---------
		- Stores a copy, so later writes to value by the caller are not seen
		- Replaces any previous entry for the key, fresh or stale
		- Restarts the freshness window from now
		- Never fails
	*/
	Insert(key K, value V)

	/*
		RemoveExpired deletes every entry stale at now.

		- Full scan of storage
		- Idempotent: a second call with nothing new to expire returns 0
		- Returns the number of entries removed
	*/
	RemoveExpired(now time.Time) int

	// Len returns the number of stored entries, stale ones included.
	Len() int

	// TTL returns the lifetime applied to every entry.
	TTL() time.Duration
}
