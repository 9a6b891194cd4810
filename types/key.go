package types

/*
Key is the constraint every cache key must satisfy.

- comparable: the key indexes a Go map, so identity is plain ==
- String: a stable byte form used only to route the key to a shard

String is NOT the identity of the key. Two keys may share a String form
(in theory) and still be different entries.
*/
type Key interface {
	comparable
	String() string
}

/*
CacheKey is the identity of a cacheable request.

Both fields are taken verbatim from the inbound request line:
- no URL decoding
- no query parameter reordering
- no case normalization

So "/a?x=1&y=2" and "/a?y=2&x=1" are two different entries.
*/
type CacheKey struct {
	Path  string
	Query string
}

// NewCacheKey builds a key from the raw path and raw query string.
func NewCacheKey(path, query string) CacheKey {
	return CacheKey{Path: path, Query: query}
}

// String renders the key the way it appeared in the request target.
func (k CacheKey) String() string {
	if k.Query == "" {
		return k.Path
	}
	return k.Path + "?" + k.Query
}
