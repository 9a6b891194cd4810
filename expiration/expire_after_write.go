package expiration

import "time"

/*
ExpireAfterWrite implements a fixed time-to-live counted from insertion.

An entry is fresh while   now - insertedAt <  ttl
and stale as soon as      now - insertedAt >= ttl

Reading an entry does not push its deadline forward. Only a new insert of the
same key starts a new window.
*/
type ExpireAfterWrite struct {
	ttl time.Duration
}

// NewExpireAfterWrite returns a strategy applying ttl uniformly to all entries.
func NewExpireAfterWrite(ttl time.Duration) *ExpireAfterWrite {
	return &ExpireAfterWrite{ttl: ttl}
}

// IsExpired checks whether the entry is stale at this moment.
// time.Time.Sub uses the monotonic reading when both instants carry one.
func (e *ExpireAfterWrite) IsExpired(insertedAt, now time.Time) bool {
	return now.Sub(insertedAt) >= e.ttl
}

func (e *ExpireAfterWrite) TTL() time.Duration {
	return e.ttl
}
