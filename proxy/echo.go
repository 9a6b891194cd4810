package proxy

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/krisalay/caching-proxy/origin"
	"github.com/krisalay/caching-proxy/types"
)

// KeyFromRequest takes path and query verbatim from the request target.
func KeyFromRequest(r *http.Request) types.CacheKey {
	if uri := r.RequestURI; strings.HasPrefix(uri, "/") {
		path, query, _ := strings.Cut(uri, "?")
		return types.NewCacheKey(path, query)
	}
	return types.NewCacheKey(r.URL.EscapedPath(), r.URL.RawQuery)
}

// Echo adapts Serve to an echo route.
//
// Origin failures become 502, or 504 on timeout. Non-2xx origin answers pass
// through with their own status. Responses fetched from the origin keep its
// Content-Type; cache hits, and origin answers without one, get a sniffed type.
func (h *Handler) Echo(c echo.Context) error {
	req := c.Request()
	res, err := h.Serve(req.Context(), KeyFromRequest(req))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, origin.ErrOriginTimeout) {
			status = http.StatusGatewayTimeout
		}
		return echo.NewHTTPError(status, http.StatusText(status)).SetInternal(err)
	}

	if res.Cached {
		c.Response().Header().Set("X-Cache", "HIT")
	} else {
		c.Response().Header().Set("X-Cache", "MISS")
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(res.Body)
	}
	return c.Blob(res.Status, contentType, res.Body)
}
