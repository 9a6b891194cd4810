package origin_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/caching-proxy/origin"
)

func TestFetchReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("maintenance"))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("hello " + r.URL.RawQuery))
	}))
	defer srv.Close()

	f := origin.NewHTTPFetcher(srv.Client(), time.Second)

	resp, err := f.Fetch(context.Background(), srv.URL+"/x?a=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "hello a=1", string(resp.Body))
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.True(t, resp.Success())

	resp, err = f.Fetch(context.Background(), srv.URL+"/down")
	require.NoError(t, err, "a non-2xx answer is not a fetch failure")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, "maintenance", string(resp.Body))
	assert.False(t, resp.Success())
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := origin.NewHTTPFetcher(nil, time.Second).Fetch(context.Background(), url+"/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, origin.ErrOriginUnreachable))
	assert.False(t, errors.Is(err, origin.ErrOriginTimeout))
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := origin.NewHTTPFetcher(srv.Client(), 50*time.Millisecond).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, origin.ErrOriginTimeout))
	assert.True(t, errors.Is(err, origin.ErrOriginUnreachable))
	assert.Less(t, time.Since(start), 2*time.Second)
}
