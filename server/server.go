package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/caching-proxy"
	"github.com/krisalay/caching-proxy/config"
	"github.com/krisalay/caching-proxy/metrics"
	"github.com/krisalay/caching-proxy/origin"
	"github.com/krisalay/caching-proxy/proxy"
	"github.com/krisalay/caching-proxy/sweep"
	"github.com/krisalay/caching-proxy/types"
)

const shutdownTimeout = 15 * time.Second

/*
Server wires the pieces together:

	echo router → proxy.Handler → ShardedCache
	                           ↘ origin.HTTPFetcher
	sweep.Sweeper → ShardedCache
	metrics.Server (optional)

The cache is built once here and shared by every request and the sweeper.
*/
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	echo    *echo.Echo
	cache   *cache.ShardedCache[types.CacheKey, []byte]
	sweeper *sweep.Sweeper
	metrics *metrics.Server
}

type Option func(*options)

type options struct {
	client   *http.Client
	registry *prometheus.Registry
}

// WithHTTPClient sets the client used for origin fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithRegistry sets the Prometheus registry. Default is a fresh one with Go
// and process collectors.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.NewPrometheus("proxy", o.registry)
	c := cache.New[types.CacheKey, []byte](cache.Options{
		TTL:     cfg.TTL,
		Shards:  cfg.Shards,
		Metrics: m,
	})
	m.TrackEntries(c.Len)

	h := proxy.New(c, origin.NewHTTPFetcher(o.client, cfg.OriginTimeout), proxy.Options{
		OriginHost: cfg.OriginHost,
		Coalesce:   cfg.Coalesce,
		Logger:     logger,
		Metrics:    m,
	})

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		echo:    newRouter(h, logger),
		cache:   c,
		sweeper: sweep.New(c, cfg.SweepInterval, sweep.WithClock(c.Now), sweep.WithLogger(logger)),
	}
	if cfg.MetricsAddr != "" {
		s.metrics = metrics.NewServer(cfg.MetricsAddr, o.registry)
	}
	return s
}

func newRouter(h *proxy.Handler, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(withLogging(logger))

	// Only GET is proxied and cached. Other methods get 405 from the router.
	e.GET("/*", h.Echo)
	return e
}

// Handler returns the proxy's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Cache returns the shared response cache.
func (s *Server) Cache() *cache.ShardedCache[types.CacheKey, []byte] {
	return s.cache
}

/*
Run serves until ctx is cancelled or a listener fails.

On the way out it:
1. stops accepting and drains in-flight requests (bounded by shutdownTimeout)
2. stops the metrics server
3. stops the sweeper
*/
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting reverse proxy",
		"origin", s.cfg.OriginHost,
		"listen", s.cfg.ListenAddr,
		"ttl", s.cfg.TTL,
		"sweep_interval", s.cfg.SweepInterval,
		"shards", s.cfg.Shards,
		"coalesce", s.cfg.Coalesce,
	)

	s.sweeper.Start(ctx)
	defer s.sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("proxy listener: %w", err)
		}
		return nil
	})

	if s.metrics != nil {
		s.logger.Info("serving metrics", "addr", s.cfg.MetricsAddr)
		g.Go(func() error {
			if err := s.metrics.Start(); err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := s.echo.Shutdown(shutdownCtx)
		if s.metrics != nil {
			err = errors.Join(err, s.metrics.Stop(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}
