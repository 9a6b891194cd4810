package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/krisalay/caching-proxy/types"
)

var (
	// ErrOriginUnreachable means no response came back: DNS, connect, TLS,
	// reset, or a body cut short.
	ErrOriginUnreachable = errors.New("origin unreachable")

	// ErrOriginTimeout means the origin did not finish answering in time.
	// It wraps ErrOriginUnreachable, so errors.Is works for both.
	ErrOriginTimeout = fmt.Errorf("%w: timeout", ErrOriginUnreachable)
)

// HTTPFetcher performs origin GETs over net/http.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

var _ types.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher bounding each request by timeout.
// A nil client gets a fresh http.Client.
func NewHTTPFetcher(client *http.Client, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client, timeout: timeout}
}

/*
Fetch GETs url and reads the whole body.

Any status, 2xx or not, comes back as a response with a nil error.
Only a failed request/response cycle is an error.
*/
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (types.OriginResponse, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.OriginResponse{}, fmt.Errorf("%w: build request: %v", ErrOriginUnreachable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return types.OriginResponse{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.OriginResponse{}, classify(ctx, err)
	}

	return types.OriginResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOriginTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrOriginUnreachable, err)
}
