package proxy_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/caching-proxy"
	"github.com/krisalay/caching-proxy/origin"
	"github.com/krisalay/caching-proxy/proxy"
	"github.com/krisalay/caching-proxy/types"
)

//
// ================= TEST ORIGIN =================
//

type fakeOrigin struct {
	mu      sync.Mutex
	urls    []string
	respond func(url string) (types.OriginResponse, error)
}

func (o *fakeOrigin) Fetch(ctx context.Context, url string) (types.OriginResponse, error) {
	o.mu.Lock()
	o.urls = append(o.urls, url)
	o.mu.Unlock()
	return o.respond(url)
}

func (o *fakeOrigin) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.urls)
}

func (o *fakeOrigin) URLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

func answer(status int, body string) func(string) (types.OriginResponse, error) {
	return func(string) (types.OriginResponse, error) {
		return types.OriginResponse{Status: status, Body: []byte(body)}, nil
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(1_700_000_000, 0).Add(d)
}

func newHandler(t *testing.T, o *fakeOrigin, coalesce bool) (*proxy.Handler, *cache.ShardedCache[types.CacheKey, []byte], *clock) {
	t.Helper()
	clk := &clock{}
	clk.Set(0)
	c := cache.New[types.CacheKey, []byte](cache.Options{TTL: 30 * time.Second, Clock: clk.Now})
	h := proxy.New(c, o, proxy.Options{OriginHost: "origin.test", Coalesce: coalesce})
	return h, c, clk
}

//
// ================= ORIGIN URL =================
//

func TestOriginURL(t *testing.T) {
	h := proxy.New(nil, nil, proxy.Options{OriginHost: "blockstream.info"})

	assert.Equal(t, "https://blockstream.info/api/blocks", h.OriginURL(types.NewCacheKey("/api/blocks", "")))
	assert.Equal(t, "https://blockstream.info/a%20b?y=2&x=1", h.OriginURL(types.NewCacheKey("/a%20b", "y=2&x=1")))
}

//
// ================= HIT / MISS =================
//

func TestHitMissAndExpiry(t *testing.T) {
	o := &fakeOrigin{respond: answer(http.StatusOK, "hello")}
	h, _, clk := newHandler(t, o, false)
	k := types.NewCacheKey("/x", "")
	ctx := context.Background()

	// t=0: miss, fetched, cached.
	res, err := h.Serve(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, proxy.Result{Status: http.StatusOK, Body: []byte("hello")}, res)
	assert.Equal(t, 1, o.Calls())

	// t=10: hit, origin untouched.
	clk.Set(10 * time.Second)
	res, err = h.Serve(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, proxy.Result{Status: http.StatusOK, Body: []byte("hello"), Cached: true}, res)
	assert.Equal(t, 1, o.Calls())

	// t=35: stale, origin contacted again.
	clk.Set(35 * time.Second)
	res, err = h.Serve(ctx, k)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, o.Calls())
	assert.Equal(t, []string{"https://origin.test/x", "https://origin.test/x"}, o.URLs())
}

func TestServedBodiesDoNotShareCacheMemory(t *testing.T) {
	o := &fakeOrigin{respond: answer(http.StatusOK, "hello")}
	h, _, _ := newHandler(t, o, false)
	k := types.NewCacheKey("/x", "")
	ctx := context.Background()

	res, err := h.Serve(ctx, k)
	require.NoError(t, err)
	require.False(t, res.Cached)
	res.Body[0] = 'J'

	res, err = h.Serve(ctx, k)
	require.NoError(t, err)
	require.True(t, res.Cached)
	assert.Equal(t, "hello", string(res.Body), "writing into a miss body must not reach the cache")
	res.Body[0] = 'M'

	res, err = h.Serve(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Body), "writing into a hit body must not reach the cache")
}

func TestOriginContentTypeIsCarriedOnMiss(t *testing.T) {
	o := &fakeOrigin{respond: func(string) (types.OriginResponse, error) {
		return types.OriginResponse{
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{"application/json"}},
			Body:   []byte(`{"height":1}`),
		}, nil
	}}
	h, _, _ := newHandler(t, o, false)
	k := types.NewCacheKey("/tip", "")

	res, err := h.Serve(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, "application/json", res.ContentType)

	res, err = h.Serve(context.Background(), k)
	require.NoError(t, err)
	require.True(t, res.Cached)
	assert.Empty(t, res.ContentType, "the cache keeps only the body")
}

func TestNonSuccessIsNeverCached(t *testing.T) {
	o := &fakeOrigin{respond: answer(http.StatusServiceUnavailable, "busy")}
	h, c, _ := newHandler(t, o, false)
	k := types.NewCacheKey("/y", "")

	for i := 1; i <= 3; i++ {
		res, err := h.Serve(context.Background(), k)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, res.Status)
		assert.Equal(t, "busy", string(res.Body))
		assert.False(t, res.Cached)
		assert.Equal(t, i, o.Calls(), "every repeat goes back to the origin")
	}
	assert.Equal(t, 0, c.Len())
}

func TestAny2xxIsCached(t *testing.T) {
	o := &fakeOrigin{respond: answer(http.StatusNonAuthoritativeInfo, "proxied")}
	h, _, _ := newHandler(t, o, false)
	k := types.NewCacheKey("/z", "q=1")

	res, err := h.Serve(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNonAuthoritativeInfo, res.Status, "a miss returns the origin's own 2xx")

	res, err = h.Serve(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status, "a hit is always 200")
	assert.True(t, res.Cached)
	assert.Equal(t, 1, o.Calls())
}

func TestRedirectIsNotCached(t *testing.T) {
	o := &fakeOrigin{respond: answer(http.StatusFound, "")}
	h, c, _ := newHandler(t, o, false)

	res, err := h.Serve(context.Background(), types.NewCacheKey("/moved", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.Status)
	assert.Equal(t, 0, c.Len())
}

//
// ================= ORIGIN FAILURE =================
//

func TestOriginFailureIsReportedAndNotCached(t *testing.T) {
	o := &fakeOrigin{respond: func(string) (types.OriginResponse, error) {
		return types.OriginResponse{}, fmt.Errorf("%w: connection refused", origin.ErrOriginUnreachable)
	}}
	h, c, _ := newHandler(t, o, false)

	_, err := h.Serve(context.Background(), types.NewCacheKey("/down", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, origin.ErrOriginUnreachable))
	assert.Contains(t, err.Error(), "https://origin.test/down")
	assert.Equal(t, 0, c.Len())

	// The failure is local to that request: the next one tries again.
	o.respond = answer(http.StatusOK, "back")
	res, err := h.Serve(context.Background(), types.NewCacheKey("/down", ""))
	require.NoError(t, err)
	assert.Equal(t, "back", string(res.Body))
}

func TestFailureOnOneKeyDoesNotTouchAnother(t *testing.T) {
	o := &fakeOrigin{respond: answer(http.StatusOK, "good")}
	h, _, _ := newHandler(t, o, false)
	ctx := context.Background()

	_, err := h.Serve(ctx, types.NewCacheKey("/good", ""))
	require.NoError(t, err)

	o.respond = func(string) (types.OriginResponse, error) {
		return types.OriginResponse{}, origin.ErrOriginTimeout
	}
	_, err = h.Serve(ctx, types.NewCacheKey("/bad", ""))
	require.Error(t, err)

	res, err := h.Serve(ctx, types.NewCacheKey("/good", ""))
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentMissesAllFetch(t *testing.T) {
	const n = 16
	arrived := make(chan struct{}, n)
	release := make(chan struct{})
	o := &fakeOrigin{respond: func(string) (types.OriginResponse, error) {
		arrived <- struct{}{}
		<-release
		return types.OriginResponse{Status: http.StatusOK, Body: []byte("same")}, nil
	}}
	h, c, _ := newHandler(t, o, false)
	k := types.NewCacheKey("/fresh", "")

	wg := sync.WaitGroup{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.Serve(context.Background(), k)
			if err != nil || string(res.Body) != "same" {
				t.Errorf("unexpected result %v %v", res, err)
			}
		}()
	}

	// Every request is inside its fetch before any of them gets an answer.
	for i := 0; i < n; i++ {
		<-arrived
	}
	close(release)
	wg.Wait()

	assert.Equal(t, n, o.Calls())
	assert.Equal(t, 1, c.Len())
	v, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, "same", string(v))
}

func TestCoalescedMissesShareOneFetch(t *testing.T) {
	const n = 16
	release := make(chan struct{})
	o := &fakeOrigin{respond: func(string) (types.OriginResponse, error) {
		<-release
		return types.OriginResponse{Status: http.StatusOK, Body: []byte("once")}, nil
	}}
	h, c, _ := newHandler(t, o, true)
	k := types.NewCacheKey("/hot", "")

	wg := sync.WaitGroup{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.Serve(context.Background(), k)
			if err != nil || string(res.Body) != "once" {
				t.Errorf("unexpected result %v %v", res, err)
			}
		}()
	}

	require.Eventually(t, func() bool { return o.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, o.Calls())
	assert.Equal(t, 1, c.Len())
}

func TestCoalescedFetchSurvivesCallerCancel(t *testing.T) {
	o := &fakeOrigin{respond: func(string) (types.OriginResponse, error) {
		time.Sleep(20 * time.Millisecond)
		return types.OriginResponse{Status: http.StatusOK, Body: []byte("ok")}, nil
	}}
	h, c, _ := newHandler(t, o, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.Serve(ctx, types.NewCacheKey("/c", ""))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res.Body))
	assert.Equal(t, 1, c.Len())
}
