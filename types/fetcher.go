package types

import (
	"context"
	"net/http"
)

// OriginResponse is what the origin answered: a status code, its headers and the full body.
type OriginResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Success reports whether the response may be cached. Any 2xx counts.
func (r OriginResponse) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// Fetcher is the contract between the proxy and the origin.
type Fetcher interface {

	/*
		Fetch is called when the cache misses. The proxy hands over a fully
		qualified URL and waits for the answer.

		1. Origin answered (any status) → OriginResponse, nil
		2. No answer at all (network error, timeout, refused) → error

		A non-2xx status is NOT an error here. The proxy decides what to do with it.
	*/
	Fetch(ctx context.Context, url string) (OriginResponse, error)
}
