package proxy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krisalay/caching-proxy/api"
	"github.com/krisalay/caching-proxy/types"
)

/*
Handler decides hit or miss for each inbound request and talks to the origin on a miss.

Per request:
- exactly one cache read
- at most one origin fetch, only on a miss
- at most one cache write, only when the origin answered 2xx

The origin fetch never runs while a cache lock is held.
*/
type Handler struct {
	cache   api.Cache[types.CacheKey, []byte]
	fetcher types.Fetcher
	origin  string

	// coalesce makes concurrent misses for one key share a single fetch.
	coalesce bool
	sf       singleflight.Group

	logger  *slog.Logger
	metrics types.Metrics
}

type Options struct {
	// OriginHost is host[:port] of the origin. The scheme is always https.
	OriginHost string

	// Coalesce enables single-flight fetches per key. Off by default:
	// N concurrent misses for one key then make N fetches, last write wins.
	Coalesce bool

	Logger  *slog.Logger
	Metrics types.Metrics
}

// Result is what the proxy answers with.
type Result struct {
	Status int
	Body   []byte

	// ContentType is the origin's Content-Type header. Empty for cache hits,
	// which only store the body.
	ContentType string

	// Cached is true when Body came from the cache without contacting the origin.
	Cached bool
}

func New(c api.Cache[types.CacheKey, []byte], f types.Fetcher, opts Options) *Handler {
	h := &Handler{
		cache:    c,
		fetcher:  f,
		origin:   opts.OriginHost,
		coalesce: opts.Coalesce,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = types.NoopMetrics{}
	}
	return h
}

// OriginURL builds https://<origin><path>[?<query>] without re-encoding anything.
func (h *Handler) OriginURL(key types.CacheKey) string {
	url := "https://" + h.origin + key.Path
	if key.Query != "" {
		url += "?" + key.Query
	}
	return url
}

/*
Serve answers one request identified by key.

1. Fresh entry in the cache → 200 with a copy of the cached body, origin untouched
2. Miss, origin answers 2xx → body stored in the cache, origin status returned
3. Miss, origin answers anything else → origin status and body, NOT stored
4. Miss, origin unreachable → error wrapping origin.ErrOriginUnreachable

Cases 3 and 4 never leave anything behind in the cache.
*/
func (h *Handler) Serve(ctx context.Context, key types.CacheKey) (Result, error) {
	url := h.OriginURL(key)
	h.logger.Debug("received request", "url", url)

	if body, ok := h.cache.Get(key); ok {
		h.logger.Debug("serving from cache", "url", url)
		return Result{Status: http.StatusOK, Body: body, Cached: true}, nil
	}

	resp, err := h.miss(ctx, key, url)
	if err != nil {
		h.logger.Warn("origin fetch failed", "url", url, "err", err)
		return Result{}, fmt.Errorf("fetch %s: %w", url, err)
	}

	return Result{
		Status:      resp.Status,
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (h *Handler) miss(ctx context.Context, key types.CacheKey, url string) (types.OriginResponse, error) {
	if !h.coalesce {
		return h.fetchAndStore(ctx, key, url)
	}

	// The shared fetch must not die with whichever caller happened to start it.
	// The fetcher's own timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := h.sf.Do(key.Path+"\x00"+key.Query, func() (any, error) {
		return h.fetchAndStore(flightCtx, key, url)
	})
	if shared {
		h.logger.Debug("joined in-flight fetch", "url", url)
	}
	if err != nil {
		return types.OriginResponse{}, err
	}
	resp := v.(types.OriginResponse)
	if shared {
		// Every waiter gets the same response value; give each its own body.
		resp.Body = bytes.Clone(resp.Body)
	}
	return resp, nil
}

func (h *Handler) fetchAndStore(ctx context.Context, key types.CacheKey, url string) (types.OriginResponse, error) {
	start := time.Now()
	resp, err := h.fetcher.Fetch(ctx, url)
	if err != nil {
		h.metrics.OriginError()
		return types.OriginResponse{}, err
	}
	h.metrics.OriginResponse(resp.Status, time.Since(start))

	if !resp.Success() {
		h.logger.Info("not caching", "url", url, "status", resp.Status)
		return resp, nil
	}

	h.logger.Debug("caching response", "url", url, "status", resp.Status, "bytes", len(resp.Body))
	h.cache.Insert(key, resp.Body)
	return resp, nil
}
