// This file defines how cache entries expire over time.

package expiration

import "time"

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.

A strategy only looks at the insertion instant. It never mutates an entry:
reads do not extend a lifetime.
*/
type Strategy interface {

	// IsExpired reports whether an entry inserted at insertedAt is stale at now.
	IsExpired(insertedAt, now time.Time) bool

	// TTL returns the lifetime applied to every entry.
	TTL() time.Duration
}
