package types

import "time"

// This file defines how the cache and the proxy report what they are doing.

/*
Metrics is an interface that defines what the proxy wants to measure.
Each method represents an event in the request or cache lifecycle.
*/
type Metrics interface {

	// Hit is called when a lookup finds a fresh entry.
	Hit()

	// Miss is called when a lookup finds nothing, or only a stale entry.
	Miss()

	// Store is called when a value is written into the cache.
	Store()

	// Expire is called after a sweep with the number of entries it removed.
	Expire(n int)

	// OriginResponse is called when the origin answered, whatever the status.
	OriginResponse(status int, took time.Duration)

	// OriginError is called when the origin could not be reached at all.
	OriginError()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

Components that accept a nil Metrics swap it for NoopMetrics,
so the hot path never has to check for nil.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()                              {}
func (NoopMetrics) Miss()                             {}
func (NoopMetrics) Store()                            {}
func (NoopMetrics) Expire(int)                        {}
func (NoopMetrics) OriginResponse(int, time.Duration) {}
func (NoopMetrics) OriginError()                      {}
